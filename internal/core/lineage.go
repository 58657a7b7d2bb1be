package core

import (
	"colonyledger/pkg/domain"
	"context"
	"sort"
)

// Parents is the resolved breeding pair of a cage.
type Parents struct {
	Mother domain.Animal
	Father domain.Animal
}

// GroupByGender splits animals into males and females, preserving order.
// Animals of unknown gender land in neither group.
func GroupByGender(animals []domain.Animal) (males, females []domain.Animal) {
	for _, a := range animals {
		switch a.Gender {
		case domain.GenderMale:
			males = append(males, a)
		case domain.GenderFemale:
			females = append(females, a)
		}
	}
	return males, females
}

// lowestLivingFemale returns the living female with the smallest numeric id.
func lowestLivingFemale(females []domain.Animal) (domain.Animal, bool) {
	living := make([]domain.Animal, 0, len(females))
	for _, f := range females {
		if f.Alive() {
			living = append(living, f)
		}
	}
	if len(living) == 0 {
		return domain.Animal{}, false
	}
	sort.SliceStable(living, func(i, j int) bool { return living[i].NumericID < living[j].NumericID })
	return living[0], true
}

// ResolveParents picks the mother and father of the litter housed in cage.
func (s *Service) ResolveParents(ctx context.Context, cage string) (Parents, error) {
	occupants, err := s.CageOccupants(ctx, cage)
	if err != nil {
		return Parents{}, err
	}
	return resolveParents(cage, occupants)
}

func resolveParents(cage string, occupants []domain.Animal) (Parents, error) {
	males, females := GroupByGender(occupants)

	mother, ok := lowestLivingFemale(females)
	if !ok {
		return Parents{}, NoMotherFoundError{Cage: cage}
	}
	if mother.Status != domain.StatusPups {
		return Parents{}, InvalidMotherStateError{Cage: cage, AnimalID: mother.AnimalID, Status: mother.Status}
	}

	var father domain.Animal
	found := false
	for _, m := range males {
		if m.Alive() {
			father, found = m, true
			break
		}
	}
	if !found {
		return Parents{}, NoFatherFoundError{Cage: cage}
	}
	if father.Status != domain.StatusBreeding {
		return Parents{}, InvalidFatherStateError{Cage: cage, AnimalID: father.AnimalID, Status: father.Status}
	}
	return Parents{Mother: mother, Father: father}, nil
}
