package core

import (
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"strings"
)

const (
	firstCohort = 'A'
	lastCohort  = 'Z'
)

// MaxNumericID returns the largest numeric record id in the store, or 0 when
// the store is empty.
func (s *Service) MaxNumericID(ctx context.Context) (int64, error) {
	col := s.cfg.Columns.ID
	recs, err := s.store.FindSorted(ctx, col, domain.Descending, 1)
	if err != nil {
		return 0, fmt.Errorf("find max %s: %w", col, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	n, ok := domain.AsInt64(recs[0].Fields[col])
	if !ok {
		return 0, fmt.Errorf("record %s has non-numeric %s %v", recs[0].ID, col, recs[0].Fields[col])
	}
	return n, nil
}

// NextNumericID returns one greater than the store-wide maximum numeric id.
func (s *Service) NextNumericID(ctx context.Context) (int64, error) {
	max, err := s.MaxNumericID(ctx)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// NextCohortLetter finds the first letter X for which "<cage>-X1" does not
// exist yet.
func (s *Service) NextCohortLetter(ctx context.Context, cage string) (string, error) {
	r, err := s.nextCohort(ctx, cage)
	if err != nil {
		return "", err
	}
	return string(r), nil
}

func (s *Service) nextCohort(ctx context.Context, cage string) (rune, error) {
	if strings.TrimSpace(cage) == "" {
		return 0, ValidationError{Rule: RuleRequiredArgument, Message: "cage required"}
	}
	for letter := firstCohort; letter <= lastCohort; letter++ {
		probe := domain.FormatAnimalID(cage, letter, 1)
		recs, err := s.store.Find(ctx, s.cfg.Columns.AnimalID, probe)
		if err != nil {
			return 0, fmt.Errorf("probe cohort %s: %w", probe, err)
		}
		if len(recs) == 0 {
			return letter, nil
		}
	}
	return 0, CohortExhaustedError{Cage: cage}
}
