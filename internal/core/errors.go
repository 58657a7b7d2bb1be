package core

import (
	"colonyledger/pkg/domain"
	"errors"
	"fmt"
)

// Entity names the kind of thing a NotFoundError refers to.
type Entity string

// Lookup targets.
const (
	EntityAnimal Entity = "animal"
	EntityCage   Entity = "cage"
)

// NotFoundError is returned when an animal id or cage has no records.
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Validation rule names carried by ValidationError.
const (
	RuleSourceCageExists        = "source_cage_exists"
	RuleDestinationCageEmpty    = "destination_cage_empty"
	RuleDestinationCageUnique   = "destination_cage_unique"
	RuleDestinationCageRequired = "destination_cage_required"
	RuleFemaleOverflowCage      = "female_overflow_cage"
	RuleMaleOverflowCage        = "male_overflow_cage"
	RuleLitterCounts            = "litter_counts"
	RuleDistinctBreeders        = "distinct_breeders"
	RuleMotherWeaningDate       = "mother_weaning_date"
	RuleRequiredArgument        = "required_argument"
)

// ValidationError reports a violated argument precondition. Err, when set,
// carries the underlying cause (e.g. a NotFoundError for a missing source cage).
type ValidationError struct {
	Rule    string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

func (e ValidationError) Unwrap() error { return e.Err }

// WrongGenderError is returned when a breeding participant has the wrong sex.
type WrongGenderError struct {
	AnimalID string
	Expected domain.Gender
	Actual   domain.Gender
}

func (e WrongGenderError) Error() string {
	return fmt.Sprintf("animal %s is %s, expected %s", e.AnimalID, genderText(e.Actual), e.Expected)
}

// DeadAnimalError is returned when a sacrificed or dead animal is asked to breed.
type DeadAnimalError struct {
	AnimalID string
	Status   domain.Status
}

func (e DeadAnimalError) Error() string {
	return fmt.Sprintf("animal %s is %s and cannot breed", e.AnimalID, e.Status)
}

// AlreadyTerminalError is returned when sacrificing an animal that is already
// sacrificed or dead.
type AlreadyTerminalError struct {
	AnimalID string
	Status   domain.Status
}

func (e AlreadyTerminalError) Error() string {
	return fmt.Sprintf("animal %s is already %s", e.AnimalID, e.Status)
}

// AllDeadError reports a cage whose occupants are all sacrificed or dead.
// It is not fatal: nothing was written.
type AllDeadError struct {
	Cage string
}

func (e AllDeadError) Error() string {
	return fmt.Sprintf("all animals in cage %s are already dead", e.Cage)
}

// NotBreedingError is returned by Birth when the mother candidate is not breeding.
type NotBreedingError struct {
	AnimalID string
	Status   domain.Status
}

func (e NotBreedingError) Error() string {
	return fmt.Sprintf("female %s was not set to breeding (status %s)", e.AnimalID, statusText(e.Status))
}

// InvalidMotherStateError is returned when the cage's mother is not with pups.
type InvalidMotherStateError struct {
	Cage     string
	AnimalID string
	Status   domain.Status
}

func (e InvalidMotherStateError) Error() string {
	return fmt.Sprintf("mother %s in cage %s does not have pups (status %s)", e.AnimalID, e.Cage, statusText(e.Status))
}

// InvalidFatherStateError is returned when the cage's father is not breeding.
type InvalidFatherStateError struct {
	Cage     string
	AnimalID string
	Status   domain.Status
}

func (e InvalidFatherStateError) Error() string {
	return fmt.Sprintf("father %s in cage %s was not set to breeding (status %s)", e.AnimalID, e.Cage, statusText(e.Status))
}

// NoMotherFoundError is returned when a cage holds no living female.
type NoMotherFoundError struct {
	Cage string
}

func (e NoMotherFoundError) Error() string {
	return fmt.Sprintf("no living female in cage %s", e.Cage)
}

// NoFatherFoundError is returned when a cage holds no living male.
type NoFatherFoundError struct {
	Cage string
}

func (e NoFatherFoundError) Error() string {
	return fmt.Sprintf("no living male in cage %s", e.Cage)
}

// CohortExhaustedError is returned when a cage has used every cohort letter A-Z.
type CohortExhaustedError struct {
	Cage string
}

func (e CohortExhaustedError) Error() string {
	return fmt.Sprintf("cage %s has no cohort letters left after Z", e.Cage)
}

// IsFatal reports whether err should be treated as a failure. AllDeadError
// is an outcome report rather than a failure.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var allDead AllDeadError
	return !errors.As(err, &allDead)
}

func statusText(s domain.Status) string {
	if s == domain.StatusUnknown {
		return "unknown"
	}
	return string(s)
}

func genderText(g domain.Gender) string {
	if g == domain.GenderUnknown {
		return "of unknown gender"
	}
	return string(g)
}
