package core

import (
	"colonyledger/pkg/domain"
	"fmt"
	"strings"
)

// Columns names the store columns the colony sheet uses. Labs lay their
// sheets out differently, so every name is configurable.
type Columns struct {
	ID           string `mapstructure:"id" yaml:"id"`
	Status       string `mapstructure:"status" yaml:"status"`
	Strain       string `mapstructure:"strain" yaml:"strain"`
	Cage         string `mapstructure:"cage" yaml:"cage"`
	AnimalID     string `mapstructure:"animal_id" yaml:"animal_id"`
	Born         string `mapstructure:"born" yaml:"born"`
	Gender       string `mapstructure:"gender" yaml:"gender"`
	PartnerID    string `mapstructure:"partner_id" yaml:"partner_id"`
	BreedingDate string `mapstructure:"breeding_date" yaml:"breeding_date"`
	FatherID     string `mapstructure:"father_id" yaml:"father_id"`
	MotherID     string `mapstructure:"mother_id" yaml:"mother_id"`
	WeaningDate  string `mapstructure:"weaning_date" yaml:"weaning_date"`
}

// Labels are the display strings stored for each status and gender.
type Labels struct {
	Available   string `mapstructure:"available" yaml:"available"`
	Breeding    string `mapstructure:"breeding" yaml:"breeding"`
	Pups        string `mapstructure:"pups" yaml:"pups"`
	Maintenance string `mapstructure:"maintenance" yaml:"maintenance"`
	Sacrificed  string `mapstructure:"sacrificed" yaml:"sacrificed"`
	Died        string `mapstructure:"died" yaml:"died"`
	Male        string `mapstructure:"male" yaml:"male"`
	Female      string `mapstructure:"female" yaml:"female"`
}

// DefaultDateLayout renders dates as unpadded M/D/YYYY, e.g. 6/30/2019.
const DefaultDateLayout = "1/2/2006"

// Config is the immutable column, label and rule configuration of a Service.
type Config struct {
	Columns           Columns
	Labels            Labels
	DateLayout        string
	WeaningDays       int
	CohortSize        int
	MaxPerCage        int
	GenotypingMarkers []string
}

// DefaultColumns returns the column layout of the reference colony sheet.
func DefaultColumns() Columns {
	return Columns{
		ID:           "ID",
		Status:       "Status",
		Strain:       "Strain",
		Cage:         "Cage Card",
		AnimalID:     "Animal ID",
		Born:         "Born",
		Gender:       "Gender",
		PartnerID:    "Partner ID",
		BreedingDate: "Breeding Date",
		FatherID:     "Father ID",
		MotherID:     "Mother ID",
		WeaningDate:  "Weaning Date",
	}
}

// DefaultLabels returns the status and gender labels of the reference sheet.
func DefaultLabels() Labels {
	return Labels{
		Available:   "A: Available",
		Breeding:    "B: Breeding",
		Pups:        "P: With Pups",
		Maintenance: "CM: Colony Maintenance",
		Sacrificed:  "S: Sacrificed",
		Died:        "D: Died",
		Male:        "M",
		Female:      "F",
	}
}

// DefaultConfig returns the reference configuration: 21-day weaning, cohorts
// of 10, five animals per cage, and -Cre / DF16A lines held for genotyping.
func DefaultConfig() Config {
	return Config{
		Columns:           DefaultColumns(),
		Labels:            DefaultLabels(),
		DateLayout:        DefaultDateLayout,
		WeaningDays:       21,
		CohortSize:        10,
		MaxPerCage:        5,
		GenotypingMarkers: []string{"-Cre", "DF16A"},
	}
}

// Validate rejects blank or duplicate column names and labels and
// non-positive numeric limits.
func (c Config) Validate() error {
	columns := []struct{ key, val string }{
		{"id", c.Columns.ID}, {"status", c.Columns.Status}, {"strain", c.Columns.Strain},
		{"cage", c.Columns.Cage}, {"animal_id", c.Columns.AnimalID}, {"born", c.Columns.Born},
		{"gender", c.Columns.Gender}, {"partner_id", c.Columns.PartnerID},
		{"breeding_date", c.Columns.BreedingDate}, {"father_id", c.Columns.FatherID},
		{"mother_id", c.Columns.MotherID}, {"weaning_date", c.Columns.WeaningDate},
	}
	if err := uniqueNonBlank("column", columns); err != nil {
		return err
	}
	statuses := []struct{ key, val string }{
		{"available", c.Labels.Available}, {"breeding", c.Labels.Breeding}, {"pups", c.Labels.Pups},
		{"maintenance", c.Labels.Maintenance}, {"sacrificed", c.Labels.Sacrificed}, {"died", c.Labels.Died},
	}
	if err := uniqueNonBlank("status label", statuses); err != nil {
		return err
	}
	if err := uniqueNonBlank("gender label", []struct{ key, val string }{{"male", c.Labels.Male}, {"female", c.Labels.Female}}); err != nil {
		return err
	}
	if strings.TrimSpace(c.DateLayout) == "" {
		return fmt.Errorf("date layout required")
	}
	if c.WeaningDays <= 0 {
		return fmt.Errorf("weaning days must be positive, got %d", c.WeaningDays)
	}
	if c.CohortSize <= 0 {
		return fmt.Errorf("cohort size must be positive, got %d", c.CohortSize)
	}
	if c.MaxPerCage <= 0 {
		return fmt.Errorf("max per cage must be positive, got %d", c.MaxPerCage)
	}
	return nil
}

func uniqueNonBlank(kind string, entries []struct{ key, val string }) error {
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.val) == "" {
			return fmt.Errorf("%s %s must not be blank", kind, e.key)
		}
		if prev, dup := seen[e.val]; dup {
			return fmt.Errorf("%s %q used for both %s and %s", kind, e.val, prev, e.key)
		}
		seen[e.val] = e.key
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.GenotypingMarkers = append([]string(nil), c.GenotypingMarkers...)
	return out
}

// StatusLabel returns the stored label for a status.
func (l Labels) StatusLabel(s domain.Status) string {
	switch s {
	case domain.StatusAvailable:
		return l.Available
	case domain.StatusBreeding:
		return l.Breeding
	case domain.StatusPups:
		return l.Pups
	case domain.StatusMaintenance:
		return l.Maintenance
	case domain.StatusSacrificed:
		return l.Sacrificed
	case domain.StatusDied:
		return l.Died
	default:
		return ""
	}
}

// ParseStatus maps a stored label back to a status; unknown labels yield StatusUnknown.
func (l Labels) ParseStatus(label string) domain.Status {
	switch label {
	case l.Available:
		return domain.StatusAvailable
	case l.Breeding:
		return domain.StatusBreeding
	case l.Pups:
		return domain.StatusPups
	case l.Maintenance:
		return domain.StatusMaintenance
	case l.Sacrificed:
		return domain.StatusSacrificed
	case l.Died:
		return domain.StatusDied
	default:
		return domain.StatusUnknown
	}
}

// GenderLabel returns the stored label for a gender.
func (l Labels) GenderLabel(g domain.Gender) string {
	switch g {
	case domain.GenderMale:
		return l.Male
	case domain.GenderFemale:
		return l.Female
	default:
		return ""
	}
}

// ParseGender maps a stored label back to a gender.
func (l Labels) ParseGender(label string) domain.Gender {
	switch label {
	case l.Male:
		return domain.GenderMale
	case l.Female:
		return domain.GenderFemale
	default:
		return domain.GenderUnknown
	}
}

// NeedsGenotyping reports whether offspring of strain are held in colony
// maintenance until genotyped.
func (c Config) NeedsGenotyping(strain string) bool {
	for _, marker := range c.GenotypingMarkers {
		if marker != "" && strings.Contains(strain, marker) {
			return true
		}
	}
	return false
}
