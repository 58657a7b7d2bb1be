package core

import (
	"colonyledger/pkg/domain"
	"context"
	"errors"
	"strings"
	"testing"
)

func slotIDs(slots []LitterSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.AnimalID
	}
	return out
}

func seq(cage string, cohort rune, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, domain.FormatAnimalID(cage, cohort, i))
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestPlanLitterCohorts(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name    string
		females int
		males   int
		want    []string
	}{
		{"small litter", 3, 2, seq("6000", 'A', 1, 5)},
		{"exactly one cohort of females", 10, 0, seq("6000", 'A', 1, 10)},
		{"exactly one cohort mixed", 5, 5, seq("6000", 'A', 1, 10)},
		{"eleven females", 11, 0, concat(seq("6000", 'A', 1, 10), seq("6000", 'B', 1, 1))},
		{"eleven mixed rolls at first male", 6, 5, concat(seq("6000", 'A', 1, 6), seq("6000", 'B', 1, 5))},
		{"straddling split", 8, 8, concat(seq("6000", 'A', 1, 8), seq("6000", 'B', 1, 8))},
		{"full cohort then first male", 12, 3, concat(seq("6000", 'A', 1, 10), seq("6000", 'B', 1, 2), seq("6000", 'C', 1, 3))},
		{"males only above cohort skips a letter", 0, 11, concat(seq("6000", 'B', 1, 10), seq("6000", 'C', 1, 1))},
		{"males only single cohort", 0, 10, seq("6000", 'A', 1, 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := WeaningRequest{
				Cage:        "6000",
				Strain:      "WT",
				FemaleCount: tc.females,
				FemaleCage:  "7000",
				FemaleCage2: "7002",
				MaleCount:   tc.males,
				MaleCage:    "7001",
				MaleCage2:   "7003",
			}
			slots, err := cfg.PlanLitter(req, 'A', 100)
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			got := slotIDs(slots)
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("animal ids\n got %v\nwant %v", got, tc.want)
			}
			for i, s := range slots {
				if s.NumericID != int64(100+i) || s.Index != i+1 {
					t.Fatalf("slot %d numbering %+v", i, s)
				}
				wantGender := domain.GenderMale
				if i < tc.females {
					wantGender = domain.GenderFemale
				}
				if s.Gender != wantGender {
					t.Fatalf("slot %d gender %s", i, s.Gender)
				}
			}
		})
	}
}

func TestPlanLitterCages(t *testing.T) {
	cfg := DefaultConfig()
	req := WeaningRequest{
		Cage:            "6000",
		Strain:          "WT",
		FemaleCount:     7,
		FemaleCage:      "7000",
		FemaleCage2:     "7002",
		MaleCount:       8,
		MaleCage:        "7001",
		MaleCage2:       "7003",
		MaxMalesPerCage: 4,
	}
	slots, err := cfg.PlanLitter(req, 'A', 1)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	counts := map[string]int{}
	for _, s := range slots {
		counts[s.Cage]++
	}
	want := map[string]int{"7000": 5, "7002": 2, "7001": 4, "7003": 4}
	for cage, n := range want {
		if counts[cage] != n {
			t.Fatalf("cage %s holds %d, want %d (all %v)", cage, counts[cage], n, counts)
		}
	}
	if slots[4].Cage != "7000" || slots[5].Cage != "7002" {
		t.Fatalf("female overflow boundary wrong: %+v %+v", slots[4], slots[5])
	}
	if slots[10].Cage != "7001" || slots[11].Cage != "7003" {
		t.Fatalf("male overflow boundary wrong: %+v %+v", slots[10], slots[11])
	}
}

func TestPlanLitterCohortExhausted(t *testing.T) {
	req := WeaningRequest{Cage: "6000", FemaleCount: 6, FemaleCage: "1", FemaleCage2: "2", MaleCount: 5, MaleCage: "3"}
	_, err := DefaultConfig().PlanLitter(req, 'Z', 1)
	var ce CohortExhaustedError
	if !errors.As(err, &ce) || ce.Cage != "6000" {
		t.Fatalf("expected CohortExhaustedError, got %v", err)
	}
	if _, err := DefaultConfig().PlanLitter(WeaningRequest{Cage: "6000", FemaleCount: 3, FemaleCage: "1"}, 'Z', 1); err != nil {
		t.Fatalf("single cohort at Z should fit: %v", err)
	}
}

// litterColony seeds parental cage 6000 with a mother that has pups and a
// breeding father, plus an unrelated animal holding the highest numeric id.
func litterColony(t *testing.T, strain string, opts ...Option) *colony {
	c := newColony(t, opts...)
	mother := animal(3, "5000-A1", "6000", domain.GenderFemale, domain.StatusPups)
	mother.Strain = strain
	mother.WeaningDate = day(t, "7/21/2019")
	father := animal(4, "5000-A2", "6000", domain.GenderMale, domain.StatusBreeding)
	father.Strain = strain
	c.add(mother)
	c.add(father)
	c.add(animal(40, "9000-A1", "9000", domain.GenderMale, domain.StatusAvailable))
	return c
}

func TestWeanedLitter(t *testing.T) {
	c := litterColony(t, "WT")
	report, err := c.svc.Weaned(context.Background(), WeaningRequest{
		Cage:              "6000",
		Strain:            "WT",
		FemaleCount:       3,
		FemaleCage:        "7000",
		MaxFemalesPerCage: 5,
		MaleCount:         2,
		MaleCage:          "7001",
		MaxMalesPerCage:   5,
	})
	if err != nil {
		t.Fatalf("weaned: %v", err)
	}
	if len(report.Animals) != 5 {
		t.Fatalf("expected 5 new animals, got %d", len(report.Animals))
	}
	c.assertWrites(6)

	born := day(t, "6/30/2019")
	for i, a := range report.Animals {
		wantID := domain.FormatAnimalID("6000", 'A', i+1)
		if a.AnimalID != wantID || a.NumericID != int64(41+i) {
			t.Fatalf("animal %d: %s/%d", i, a.AnimalID, a.NumericID)
		}
		wantGender, wantCage := domain.GenderFemale, "7000"
		if i >= 3 {
			wantGender, wantCage = domain.GenderMale, "7001"
		}
		if a.Gender != wantGender || a.Cage != wantCage {
			t.Fatalf("animal %s: %s in %s", a.AnimalID, a.Gender, a.Cage)
		}
		if a.Status != domain.StatusAvailable || a.Strain != "WT" || !a.Born.Equal(born) {
			t.Fatalf("animal %s fields %+v", a.AnimalID, a)
		}
		if a.MotherID != "5000-A1_WT" || a.FatherID != "5000-A2_WT" {
			t.Fatalf("animal %s lineage %s/%s", a.AnimalID, a.MotherID, a.FatherID)
		}
	}
	if len(c.cage("7000")) != 3 || len(c.cage("7001")) != 2 {
		t.Fatalf("stored cage counts wrong")
	}

	mother := c.get("5000-A1")
	if mother.Status != domain.StatusBreeding || !mother.WeaningDate.IsZero() {
		t.Fatalf("mother not reset: %+v", mother)
	}
	if !strings.Contains(report.Message, "6000-A1 goes to cage 7000") {
		t.Fatalf("report missing placement: %q", report.Message)
	}
}

func TestWeanedOverflowAndNextCohort(t *testing.T) {
	c := litterColony(t, "WT")
	c.add(animal(41, "6000-A1", "7100", domain.GenderFemale, domain.StatusAvailable))

	report, err := c.svc.Weaned(context.Background(), WeaningRequest{
		Cage: "6000", Strain: "WT", FemaleCount: 7, FemaleCage: "7000", FemaleCage2: "7002",
	})
	if err != nil {
		t.Fatalf("weaned: %v", err)
	}
	if len(c.cage("7000")) != 5 || len(c.cage("7002")) != 2 {
		t.Fatalf("overflow split wrong: %d/%d", len(c.cage("7000")), len(c.cage("7002")))
	}
	if report.Animals[0].AnimalID != "6000-B1" || report.Animals[0].NumericID != 42 {
		t.Fatalf("expected cohort B from id 42, got %s/%d", report.Animals[0].AnimalID, report.Animals[0].NumericID)
	}
}

func TestWeanedGenotypingStrain(t *testing.T) {
	c := litterColony(t, "Ai14-Cre")
	report, err := c.svc.Weaned(context.Background(), WeaningRequest{
		Cage: "6000", Strain: "Ai14-Cre", MaleCount: 2, MaleCage: "7001",
	})
	if err != nil {
		t.Fatalf("weaned: %v", err)
	}
	for _, a := range report.Animals {
		if a.Status != domain.StatusMaintenance {
			t.Fatalf("expected maintenance for genotyped line, got %s", a.Status)
		}
	}
}

func TestWeanedPreconditionsWriteNothing(t *testing.T) {
	cases := []struct {
		name string
		req  WeaningRequest
		rule string
	}{
		{"missing source cage", WeaningRequest{Cage: "6999", Strain: "WT", FemaleCount: 1, FemaleCage: "7000"}, RuleSourceCageExists},
		{"occupied destination", WeaningRequest{Cage: "6000", Strain: "WT", MaleCount: 1, MaleCage: "9000"}, RuleDestinationCageEmpty},
		{"duplicate destination", WeaningRequest{Cage: "6000", Strain: "WT", FemaleCount: 1, FemaleCage: "7000", MaleCount: 1, MaleCage: "7000"}, RuleDestinationCageUnique},
		{"female overflow", WeaningRequest{Cage: "6000", Strain: "WT", FemaleCount: 6, FemaleCage: "7000"}, RuleFemaleOverflowCage},
		{"male overflow", WeaningRequest{Cage: "6000", Strain: "WT", MaleCount: 4, MaleCage: "7001", MaxMalesPerCage: 3}, RuleMaleOverflowCage},
		{"no female cage", WeaningRequest{Cage: "6000", Strain: "WT", FemaleCount: 2}, RuleDestinationCageRequired},
		{"negative count", WeaningRequest{Cage: "6000", Strain: "WT", MaleCount: -1}, RuleLitterCounts},
		{"blank strain", WeaningRequest{Cage: "6000", MaleCount: 1, MaleCage: "7001"}, RuleRequiredArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := litterColony(t, "WT", WithConfirmPolicy(AlwaysProceed))
			_, err := c.svc.Weaned(context.Background(), tc.req)
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Rule != tc.rule {
				t.Fatalf("expected rule %s, got %v", tc.rule, err)
			}
			c.assertWrites(0)
		})
	}
}

func TestWeanedMissingSourceIsNotFound(t *testing.T) {
	c := litterColony(t, "WT")
	_, err := c.svc.Weaned(context.Background(), WeaningRequest{Cage: "6999", Strain: "WT"})
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Entity != EntityCage || nf.ID != "6999" {
		t.Fatalf("expected wrapped NotFoundError, got %v", err)
	}
}

func TestWeanedUnknownStrain(t *testing.T) {
	req := WeaningRequest{Cage: "6000", Strain: "NewLine", FemaleCount: 1, FemaleCage: "7000"}

	t.Run("declined", func(t *testing.T) {
		policy := &recordingPolicy{}
		c := litterColony(t, "WT", WithConfirmPolicy(policy))
		report, err := c.svc.Weaned(context.Background(), req)
		if err != nil || !report.Aborted {
			t.Fatalf("expected aborted report, got %+v %v", report, err)
		}
		if len(policy.prompts) != 1 || policy.prompts[0].Kind != PromptUnknownStrain || policy.prompts[0].Subject != "NewLine" {
			t.Fatalf("unexpected prompts %+v", policy.prompts)
		}
		c.assertWrites(0)
	})

	t.Run("confirmed", func(t *testing.T) {
		c := litterColony(t, "WT", WithConfirmPolicy(AlwaysProceed))
		report, err := c.svc.Weaned(context.Background(), req)
		if err != nil {
			t.Fatalf("weaned: %v", err)
		}
		if len(report.Animals) != 1 || report.Animals[0].Strain != "NewLine" {
			t.Fatalf("unexpected animals %+v", report.Animals)
		}
	})
}

func TestWeanedParentFailures(t *testing.T) {
	req := WeaningRequest{Cage: "6000", Strain: "WT", FemaleCount: 1, FemaleCage: "7000"}

	t.Run("mother not with pups", func(t *testing.T) {
		c := newColony(t)
		c.add(animal(1, "5000-A1", "6000", domain.GenderFemale, domain.StatusBreeding))
		c.add(animal(2, "5000-A2", "6000", domain.GenderMale, domain.StatusBreeding))
		_, err := c.svc.Weaned(context.Background(), req)
		if !errors.As(err, new(InvalidMotherStateError)) {
			t.Fatalf("expected InvalidMotherStateError, got %v", err)
		}
		c.assertWrites(0)
	})

	t.Run("no father", func(t *testing.T) {
		c := newColony(t)
		mother := animal(1, "5000-A1", "6000", domain.GenderFemale, domain.StatusPups)
		mother.WeaningDate = day(t, "7/21/2019")
		c.add(mother)
		_, err := c.svc.Weaned(context.Background(), req)
		if !errors.As(err, new(NoFatherFoundError)) {
			t.Fatalf("expected NoFatherFoundError, got %v", err)
		}
		c.assertWrites(0)
	})

	t.Run("mother without weaning date", func(t *testing.T) {
		c := newColony(t)
		c.add(animal(1, "5000-A1", "6000", domain.GenderFemale, domain.StatusPups))
		c.add(animal(2, "5000-A2", "6000", domain.GenderMale, domain.StatusBreeding))
		_, err := c.svc.Weaned(context.Background(), req)
		var ve ValidationError
		if !errors.As(err, &ve) || ve.Rule != RuleMotherWeaningDate {
			t.Fatalf("expected weaning date rule, got %v", err)
		}
		c.assertWrites(0)
	})
}

func TestWeanedEmptyLitterResetsMother(t *testing.T) {
	c := litterColony(t, "WT")
	report, err := c.svc.Weaned(context.Background(), WeaningRequest{Cage: "6000", Strain: "WT"})
	if err != nil {
		t.Fatalf("weaned: %v", err)
	}
	if len(report.Animals) != 0 {
		t.Fatalf("expected no animals, got %d", len(report.Animals))
	}
	c.assertWrites(1)
	if got := c.get("5000-A1").Status; got != domain.StatusBreeding {
		t.Fatalf("mother status %s", got)
	}
}
