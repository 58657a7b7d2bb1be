package core

import (
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"strings"
)

// WeaningRequest describes a weaned litter leaving its parental cage.
// Zero MaxFemalesPerCage/MaxMalesPerCage select the configured default.
type WeaningRequest struct {
	Cage              string
	Strain            string
	FemaleCount       int
	FemaleCage        string
	FemaleCage2       string
	MaxFemalesPerCage int
	MaleCount         int
	MaleCage          string
	MaleCage2         string
	MaxMalesPerCage   int
}

func (r WeaningRequest) withDefaults(maxPerCage int) WeaningRequest {
	if r.MaxFemalesPerCage <= 0 {
		r.MaxFemalesPerCage = maxPerCage
	}
	if r.MaxMalesPerCage <= 0 {
		r.MaxMalesPerCage = maxPerCage
	}
	return r
}

// destinations returns the specified destination cages keyed by role.
func (r WeaningRequest) destinations() []struct{ role, cage string } {
	all := []struct{ role, cage string }{
		{"female cage", r.FemaleCage},
		{"second female cage", r.FemaleCage2},
		{"male cage", r.MaleCage},
		{"second male cage", r.MaleCage2},
	}
	out := all[:0]
	for _, d := range all {
		if d.cage != "" {
			out = append(out, d)
		}
	}
	return out
}

// validateArgs checks the request shape without touching the store.
func (r WeaningRequest) validateArgs() error {
	switch {
	case strings.TrimSpace(r.Cage) == "":
		return ValidationError{Rule: RuleRequiredArgument, Message: "source cage required"}
	case strings.TrimSpace(r.Strain) == "":
		return ValidationError{Rule: RuleRequiredArgument, Message: "strain required"}
	case r.FemaleCount < 0 || r.MaleCount < 0:
		return ValidationError{Rule: RuleLitterCounts, Message: fmt.Sprintf("litter counts must not be negative (females %d, males %d)", r.FemaleCount, r.MaleCount)}
	case r.FemaleCount > 0 && r.FemaleCage == "":
		return ValidationError{Rule: RuleDestinationCageRequired, Message: "female cage required for a litter with females"}
	case r.MaleCount > 0 && r.MaleCage == "":
		return ValidationError{Rule: RuleDestinationCageRequired, Message: "male cage required for a litter with males"}
	case r.FemaleCount > r.MaxFemalesPerCage && r.FemaleCage2 == "":
		return ValidationError{Rule: RuleFemaleOverflowCage, Message: fmt.Sprintf("not enough cages to assign %d females at %d per cage", r.FemaleCount, r.MaxFemalesPerCage)}
	case r.MaleCount > r.MaxMalesPerCage && r.MaleCage2 == "":
		return ValidationError{Rule: RuleMaleOverflowCage, Message: fmt.Sprintf("not enough cages to assign %d males at %d per cage", r.MaleCount, r.MaxMalesPerCage)}
	}
	dests := r.destinations()
	for i := range dests {
		for j := i + 1; j < len(dests); j++ {
			if dests[i].cage == dests[j].cage {
				return ValidationError{
					Rule:    RuleDestinationCageUnique,
					Message: fmt.Sprintf("cage %s assigned as both %s and %s", dests[i].cage, dests[i].role, dests[j].role),
				}
			}
		}
	}
	return nil
}

// LitterSlot is the planned identity and placement of one weaned animal.
type LitterSlot struct {
	Index     int
	NumericID int64
	AnimalID  string
	Gender    domain.Gender
	Cage      string
}

// PlanLitter assigns ids, cohorts and cages to every animal of a litter.
// Females take indices 1..F and males F+1..F+M. The cohort letter advances
// when the current cohort is full, and also before the first male of a
// litter larger than one cohort.
func (c Config) PlanLitter(req WeaningRequest, cohort rune, firstID int64) ([]LitterSlot, error) {
	req = req.withDefaults(c.MaxPerCage)
	total := req.FemaleCount + req.MaleCount
	slots := make([]LitterSlot, 0, total)
	inCohort := 1
	for k := 1; k <= total; k++ {
		if inCohort > c.CohortSize || (total > c.CohortSize && k-1 == req.FemaleCount) {
			cohort++
			inCohort = 1
		}
		if cohort > lastCohort {
			return nil, CohortExhaustedError{Cage: req.Cage}
		}
		slot := LitterSlot{
			Index:     k,
			NumericID: firstID + int64(k-1),
			AnimalID:  domain.FormatAnimalID(req.Cage, cohort, inCohort),
			Gender:    domain.GenderMale,
		}
		switch {
		case k <= req.MaxFemalesPerCage && k <= req.FemaleCount:
			slot.Gender, slot.Cage = domain.GenderFemale, req.FemaleCage
		case k <= req.FemaleCount:
			slot.Gender, slot.Cage = domain.GenderFemale, req.FemaleCage2
		case k-req.FemaleCount <= req.MaxMalesPerCage:
			slot.Cage = req.MaleCage
		default:
			slot.Cage = req.MaleCage2
		}
		slots = append(slots, slot)
		inCohort++
	}
	return slots, nil
}

// Weaned moves a litter out of req.Cage: the mother returns to breeding and
// one record per weaned animal is inserted. All checks, parent resolution
// and id allocation happen before the first write.
func (s *Service) Weaned(ctx context.Context, req WeaningRequest) (Report, error) {
	return s.run(ctx, OpWeaned, req.Cage, func(ctx context.Context) (Report, error) {
		req = req.withDefaults(s.cfg.MaxPerCage)
		if err := req.validateArgs(); err != nil {
			return Report{}, err
		}

		exists, err := s.cageExists(ctx, req.Cage)
		if err != nil {
			return Report{}, err
		}
		if !exists {
			return Report{}, ValidationError{
				Rule:    RuleSourceCageExists,
				Message: "cage " + req.Cage + " does not exist",
				Err:     NotFoundError{Entity: EntityCage, ID: req.Cage},
			}
		}
		for _, d := range req.destinations() {
			taken, err := s.cageExists(ctx, d.cage)
			if err != nil {
				return Report{}, err
			}
			if taken {
				return Report{}, ValidationError{
					Rule:    RuleDestinationCageEmpty,
					Message: fmt.Sprintf("%s %s already allocated", d.role, d.cage),
				}
			}
		}

		known, err := s.store.Find(ctx, s.cfg.Columns.Strain, req.Strain)
		if err != nil {
			return Report{}, fmt.Errorf("find strain %s: %w", req.Strain, err)
		}
		if len(known) == 0 {
			report, proceed, err := s.ask(ctx, Prompt{
				Kind:    PromptUnknownStrain,
				Subject: req.Strain,
				Message: "strain " + req.Strain + " is not in the colony yet",
			})
			if err != nil || !proceed {
				return report, err
			}
		}

		parents, err := s.ResolveParents(ctx, req.Cage)
		if err != nil {
			return Report{}, err
		}
		if parents.Mother.WeaningDate.IsZero() {
			return Report{}, ValidationError{
				Rule:    RuleMotherWeaningDate,
				Message: "mother " + parents.Mother.AnimalID + " has no readable weaning date",
			}
		}
		born := s.cfg.bornFromWeaning(parents.Mother.WeaningDate)

		maxID, err := s.MaxNumericID(ctx)
		if err != nil {
			return Report{}, err
		}
		cohort, err := s.nextCohort(ctx, req.Cage)
		if err != nil {
			return Report{}, err
		}
		slots, err := s.cfg.PlanLitter(req, cohort, maxID+1)
		if err != nil {
			return Report{}, err
		}

		c := s.cfg.Columns
		reset := domain.Fields{c.Status: s.cfg.Labels.Breeding, c.WeaningDate: nil}
		if _, err := s.store.UpdateByField(ctx, c.AnimalID, parents.Mother.AnimalID, reset); err != nil {
			return Report{}, fmt.Errorf("reset mother %s: %w", parents.Mother.AnimalID, err)
		}

		status := domain.StatusAvailable
		if s.cfg.NeedsGenotyping(req.Strain) {
			status = domain.StatusMaintenance
		}
		report := Report{}
		lines := make([]string, 0, len(slots)+1)
		for _, slot := range slots {
			pup := domain.Animal{
				NumericID: slot.NumericID,
				Status:    status,
				Strain:    req.Strain,
				Cage:      slot.Cage,
				AnimalID:  slot.AnimalID,
				Born:      born,
				Gender:    slot.Gender,
				FatherID:  parents.Father.IDS(),
				MotherID:  parents.Mother.IDS(),
			}
			rec, err := s.store.Insert(ctx, s.encode(pup))
			if err != nil {
				return report, fmt.Errorf("insert %s: %w", slot.AnimalID, err)
			}
			report.Animals = append(report.Animals, s.decode(rec))
			lines = append(lines, slot.AnimalID+" goes to cage "+slot.Cage)
		}
		lines = append(lines, fmt.Sprintf("%d mice weaned from cage %s", len(slots), req.Cage))
		report.Message = strings.Join(lines, "\n")
		return report, nil
	})
}
