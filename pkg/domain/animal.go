// Package domain defines the animal records, lifecycle enums, and the record
// store contract shared by the colony manager and its storage backends.
package domain

import (
	"strconv"
	"time"
)

// Status is the canonical lifecycle state of an animal. Stores persist a
// configurable display label instead; see core.Labels for the mapping.
type Status string

// Canonical animal statuses.
const (
	StatusUnknown     Status = ""
	StatusAvailable   Status = "available"
	StatusBreeding    Status = "breeding"
	StatusPups        Status = "pups"
	StatusMaintenance Status = "maintenance"
	StatusSacrificed  Status = "sacrificed"
	StatusDied        Status = "died"
)

// Terminal reports whether no further lifecycle transition may be applied.
func (s Status) Terminal() bool {
	return s == StatusSacrificed || s == StatusDied
}

// Gender identifies the sex of an animal.
type Gender string

// Canonical genders.
const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// Animal is the typed view of one stored animal row.
type Animal struct {
	RecordID     string    `json:"record_id" yaml:"record_id"`
	NumericID    int64     `json:"numeric_id" yaml:"numeric_id"`
	Status       Status    `json:"status" yaml:"status"`
	Strain       string    `json:"strain" yaml:"strain"`
	Cage         string    `json:"cage" yaml:"cage"`
	AnimalID     string    `json:"animal_id" yaml:"animal_id"`
	Born         time.Time `json:"born,omitempty" yaml:"born,omitempty"`
	Gender       Gender    `json:"gender" yaml:"gender"`
	PartnerID    string    `json:"partner_id,omitempty" yaml:"partner_id,omitempty"`
	BreedingDate time.Time `json:"breeding_date,omitempty" yaml:"breeding_date,omitempty"`
	FatherID     string    `json:"father_id,omitempty" yaml:"father_id,omitempty"`
	MotherID     string    `json:"mother_id,omitempty" yaml:"mother_id,omitempty"`
	WeaningDate  time.Time `json:"weaning_date,omitempty" yaml:"weaning_date,omitempty"`

	// StoredStatus and StoredGender keep the labels exactly as read, so a
	// label outside the configured set is not lost when Status or Gender
	// decode to their unknown values.
	StoredStatus string `json:"stored_status,omitempty" yaml:"stored_status,omitempty"`
	StoredGender string `json:"stored_gender,omitempty" yaml:"stored_gender,omitempty"`
}

// Alive reports whether the animal is neither sacrificed nor dead.
func (a Animal) Alive() bool { return !a.Status.Terminal() }

// IDS returns the animal's cross-reference composite (animal id + strain).
func (a Animal) IDS() string { return IDS(a.AnimalID, a.Strain) }

// IDS joins an animal id and strain into the composite stored in partner,
// father and mother columns, e.g. "1071-A1_WT".
func IDS(animalID, strain string) string {
	return animalID + "_" + strain
}

// FormatAnimalID renders "<cage>-<cohort><sequence>", e.g. "1071-A1".
func FormatAnimalID(cage string, cohort rune, sequence int) string {
	return cage + "-" + string(cohort) + strconv.Itoa(sequence)
}
