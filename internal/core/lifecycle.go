package core

import (
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"strings"
	"time"
)

// Operation names used for reports, metrics and audit entries.
const (
	OpSacrifice     = "sacrifice"
	OpSacrificeCage = "sacrifice_cage"
	OpSetBreeding   = "set_breeding"
	OpBirth         = "birth"
	OpWeaned        = "weaned"
)

// Sacrifice marks one animal as sacrificed.
func (s *Service) Sacrifice(ctx context.Context, animalID string) (Report, error) {
	return s.run(ctx, OpSacrifice, animalID, func(ctx context.Context) (Report, error) {
		a, err := s.findAnimal(ctx, animalID)
		if err != nil {
			return Report{}, err
		}
		if a.Status.Terminal() {
			return Report{}, AlreadyTerminalError{AnimalID: a.AnimalID, Status: a.Status}
		}
		patch := domain.Fields{s.cfg.Columns.Status: s.cfg.Labels.Sacrificed}
		rec, err := s.store.UpdateByField(ctx, s.cfg.Columns.AnimalID, a.AnimalID, patch)
		if err != nil {
			return Report{}, fmt.Errorf("sacrifice %s: %w", a.AnimalID, err)
		}
		updated := s.decode(rec)
		return Report{
			Message: a.IDS() + " mouse SACed",
			Animals: []domain.Animal{updated},
		}, nil
	})
}

// SacrificeCage marks every living occupant of cage as sacrificed. A cage
// whose occupants are all dead yields AllDeadError and no writes.
func (s *Service) SacrificeCage(ctx context.Context, cage string) (Report, error) {
	return s.run(ctx, OpSacrificeCage, cage, func(ctx context.Context) (Report, error) {
		occupants, err := s.CageOccupants(ctx, cage)
		if err != nil {
			return Report{}, err
		}
		if len(occupants) == 0 {
			return Report{}, NotFoundError{Entity: EntityCage, ID: cage}
		}
		var living []domain.Animal
		for _, a := range occupants {
			if a.Alive() {
				living = append(living, a)
			}
		}
		if len(living) == 0 {
			err := AllDeadError{Cage: cage}
			return Report{Message: "Error: " + err.Error()}, err
		}

		report := Report{}
		lines := make([]string, 0, len(living)+1)
		patch := domain.Fields{s.cfg.Columns.Status: s.cfg.Labels.Sacrificed}
		for _, a := range living {
			rec, err := s.store.Update(ctx, a.RecordID, patch)
			if err != nil {
				return report, fmt.Errorf("sacrifice %s in cage %s: %w", a.AnimalID, cage, err)
			}
			report.Animals = append(report.Animals, s.decode(rec))
			lines = append(lines, a.IDS()+" was SACed")
		}
		lines = append(lines, "Cage "+cage+" SACed")
		report.Message = strings.Join(lines, "\n")
		return report, nil
	})
}

// BreedingRequest moves a male and one or two females into a breeding cage.
type BreedingRequest struct {
	Cage      string
	Date      time.Time
	MaleID    string
	FemaleID  string
	FemaleID2 string
}

func (r BreedingRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Cage) == "":
		return ValidationError{Rule: RuleRequiredArgument, Message: "cage required"}
	case r.Date.IsZero():
		return ValidationError{Rule: RuleRequiredArgument, Message: "breeding date required"}
	case strings.TrimSpace(r.MaleID) == "":
		return ValidationError{Rule: RuleRequiredArgument, Message: "male id required"}
	case strings.TrimSpace(r.FemaleID) == "":
		return ValidationError{Rule: RuleRequiredArgument, Message: "female id required"}
	case r.FemaleID2 != "" && r.FemaleID2 == r.FemaleID:
		return ValidationError{Rule: RuleDistinctBreeders, Message: "second female must differ from the first"}
	}
	return nil
}

// SetBreeding places the requested animals in req.Cage and pairs them.
// Every participant is looked up and checked before anything is written.
func (s *Service) SetBreeding(ctx context.Context, req BreedingRequest) (Report, error) {
	return s.run(ctx, OpSetBreeding, req.Cage, func(ctx context.Context) (Report, error) {
		if err := req.validate(); err != nil {
			return Report{}, err
		}
		male, err := s.breeder(ctx, req.MaleID, domain.GenderMale)
		if err != nil {
			return Report{}, err
		}
		females := make([]domain.Animal, 0, 2)
		for _, id := range []string{req.FemaleID, req.FemaleID2} {
			if id == "" {
				continue
			}
			f, err := s.breeder(ctx, id, domain.GenderFemale)
			if err != nil {
				return Report{}, err
			}
			females = append(females, f)
		}

		occupied, err := s.cageExists(ctx, req.Cage)
		if err != nil {
			return Report{}, err
		}
		if occupied {
			report, proceed, err := s.ask(ctx, Prompt{
				Kind:    PromptCageOccupied,
				Subject: req.Cage,
				Message: "cage " + req.Cage + " already allocated",
			})
			if err != nil || !proceed {
				return report, err
			}
		}

		date := s.cfg.FormatDate(req.Date)
		c := s.cfg.Columns
		pairing := func(partner string) domain.Fields {
			return domain.Fields{
				c.Cage:         req.Cage,
				c.Status:       s.cfg.Labels.Breeding,
				c.BreedingDate: date,
				c.PartnerID:    partner,
			}
		}

		// The male partners the first female; every female partners the male.
		report := Report{}
		participants := append([]domain.Animal{male}, females...)
		for i, a := range participants {
			partner := male.IDS()
			if i == 0 {
				partner = females[0].IDS()
			}
			rec, err := s.store.UpdateByField(ctx, c.AnimalID, a.AnimalID, pairing(partner))
			if err != nil {
				return report, fmt.Errorf("set breeding for %s: %w", a.AnimalID, err)
			}
			report.Animals = append(report.Animals, s.decode(rec))
		}

		if len(females) == 2 {
			report.Message = fmt.Sprintf("At cage %s, %s (MALE), %s and %s (FEMALES) were set to breeding on %s",
				req.Cage, male.AnimalID, females[0].AnimalID, females[1].AnimalID, date)
		} else {
			report.Message = fmt.Sprintf("At cage %s, %s (MALE), %s (FEMALE) were set to breeding on %s",
				req.Cage, male.AnimalID, females[0].AnimalID, date)
		}
		return report, nil
	})
}

// breeder looks up a breeding participant and checks sex and liveness.
func (s *Service) breeder(ctx context.Context, animalID string, want domain.Gender) (domain.Animal, error) {
	a, err := s.findAnimal(ctx, animalID)
	if err != nil {
		return domain.Animal{}, err
	}
	if a.Gender != want {
		return domain.Animal{}, WrongGenderError{AnimalID: a.AnimalID, Expected: want, Actual: a.Gender}
	}
	if !a.Alive() {
		return domain.Animal{}, DeadAnimalError{AnimalID: a.AnimalID, Status: a.Status}
	}
	return a, nil
}

// Birth records a litter born in cage on date. The lowest-numbered living
// female must be breeding; she moves to pups with a weaning date.
func (s *Service) Birth(ctx context.Context, cage string, date time.Time) (Report, error) {
	return s.run(ctx, OpBirth, cage, func(ctx context.Context) (Report, error) {
		if date.IsZero() {
			return Report{}, ValidationError{Rule: RuleRequiredArgument, Message: "birth date required"}
		}
		occupants, err := s.CageOccupants(ctx, cage)
		if err != nil {
			return Report{}, err
		}
		if len(occupants) == 0 {
			return Report{}, NotFoundError{Entity: EntityCage, ID: cage}
		}
		_, females := GroupByGender(occupants)
		mother, ok := lowestLivingFemale(females)
		if !ok {
			return Report{}, NoMotherFoundError{Cage: cage}
		}
		if mother.Status != domain.StatusBreeding {
			return Report{}, NotBreedingError{AnimalID: mother.AnimalID, Status: mother.Status}
		}

		patch := domain.Fields{
			s.cfg.Columns.Status:      s.cfg.Labels.Pups,
			s.cfg.Columns.WeaningDate: s.cfg.FormatDate(s.cfg.WeaningDate(date)),
		}
		rec, err := s.store.UpdateByField(ctx, s.cfg.Columns.AnimalID, mother.AnimalID, patch)
		if err != nil {
			return Report{}, fmt.Errorf("record birth for %s: %w", mother.AnimalID, err)
		}
		return Report{
			Message: "Pups born at cage " + cage + " on " + s.cfg.FormatDate(date),
			Animals: []domain.Animal{s.decode(rec)},
		}, nil
	})
}
