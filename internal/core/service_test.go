package core

import (
	"colonyledger/pkg/domain"
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns.Cage = cfg.Columns.Status
	if _, err := NewService(&countingStore{}, WithConfig(cfg)); err == nil {
		t.Fatalf("expected duplicate column to be rejected")
	}
}

func TestServiceConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	c := newColony(t, WithConfig(cfg))
	cfg.GenotypingMarkers[0] = "changed"
	if c.svc.Config().GenotypingMarkers[0] != "-Cre" {
		t.Fatalf("service config aliased caller slice")
	}
	got := c.svc.Config()
	got.GenotypingMarkers[0] = "changed"
	if c.svc.Config().GenotypingMarkers[0] != "-Cre" {
		t.Fatalf("Config() leaked internal slice")
	}
}

func TestCustomColumnsAndLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns.Cage = "Box"
	cfg.Columns.AnimalID = "Tag"
	cfg.Labels.Sacrificed = "Euthanized"
	c := newColony(t, WithConfig(cfg))
	c.add(animal(1, "T-1", "B1", domain.GenderMale, domain.StatusAvailable))

	if _, err := c.svc.SacrificeCage(context.Background(), "B1"); err != nil {
		t.Fatalf("sacrifice cage: %v", err)
	}
	recs, err := c.mem.Find(context.Background(), "Tag", "T-1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("find by custom column: %v %d", err, len(recs))
	}
	if recs[0].Fields["Status"] != "Euthanized" || recs[0].Fields["Box"] != "B1" {
		t.Fatalf("unexpected stored fields %+v", recs[0].Fields)
	}
}

func TestRunObservability(t *testing.T) {
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	logger := &captureLogger{}
	base := time.Date(2019, 7, 21, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := ClockFunc(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	c := newColony(t,
		WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer),
		WithLogger(logger), WithClock(clock),
	)
	c.add(animal(1, "1-A1", "1", domain.GenderMale, domain.StatusAvailable))
	c.add(animal(2, "2-A1", "2", domain.GenderMale, domain.StatusDied))
	ctx := context.Background()

	if _, err := c.svc.Sacrifice(ctx, "1-A1"); err != nil {
		t.Fatalf("sacrifice: %v", err)
	}
	if _, err := c.svc.Sacrifice(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
	if _, err := c.svc.SacrificeCage(ctx, "2"); !errors.As(err, new(AllDeadError)) {
		t.Fatalf("expected AllDeadError, got %v", err)
	}
	if _, err := c.svc.SetBreeding(ctx, BreedingRequest{Cage: "1", Date: base, MaleID: "1-A1", FemaleID: "x"}); err == nil {
		t.Fatalf("expected failure")
	}

	if !metrics.has(OpSacrifice, true) || !metrics.has(OpSacrifice, false) {
		t.Fatalf("missing sacrifice metrics %+v", metrics.calls)
	}
	if !metrics.has(OpSacrificeCage, true) {
		t.Fatalf("all-dead outcome must count as success: %+v", metrics.calls)
	}
	for _, call := range metrics.calls {
		if call.duration != time.Second {
			t.Fatalf("expected one clock tick per operation, got %s", call.duration)
		}
	}
	if !audit.has(OpSacrifice, AuditStatusSuccess) || !audit.has(OpSacrifice, AuditStatusError) {
		t.Fatalf("missing audit entries %+v", audit.entries)
	}
	if got := audit.entries[0].Affected; len(got) != 1 || got[0] != "1-A1" {
		t.Fatalf("affected animals %v", got)
	}
	if len(tracer.started) != 4 || len(tracer.ended) != 4 || tracer.ended[0].err != nil || tracer.ended[1].err == nil {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
	if logger.count("info") != 1 || logger.count("warn") != 1 || logger.count("error") != 2 {
		t.Fatalf("unexpected log levels %+v", logger.lines)
	}
}

func TestRunAuditsAbort(t *testing.T) {
	audit := &captureAuditRecorder{}
	logger := &captureLogger{}
	c := breedingColony(t, WithAuditRecorder(audit), WithLogger(logger))
	report, err := c.svc.SetBreeding(context.Background(), BreedingRequest{
		Cage: "1050", Date: day(t, "1/1/2020"), MaleID: "1001-A1", FemaleID: "1001-A2",
	})
	if err != nil || !report.Aborted {
		t.Fatalf("expected abort, got %+v %v", report, err)
	}
	if report.Operation != OpSetBreeding {
		t.Fatalf("operation %q", report.Operation)
	}
	if !audit.has(OpSetBreeding, AuditStatusAborted) {
		t.Fatalf("abort not audited: %+v", audit.entries)
	}
	if logger.count("warn") != 1 || logger.count("debug") != 1 {
		t.Fatalf("unexpected log lines %+v", logger.lines)
	}
}

func TestContextCancellationStopsOperations(t *testing.T) {
	c := newColony(t)
	c.add(animal(1, "1-A1", "1", domain.GenderMale, domain.StatusAvailable))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.svc.Sacrifice(ctx, "1-A1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	c.assertWrites(0)
}

func TestAnimalsOrderedByNumericID(t *testing.T) {
	c := newColony(t)
	c.add(animal(12, "20-A2", "20", domain.GenderMale, domain.StatusAvailable))
	c.add(animal(3, "10-A1", "10", domain.GenderFemale, domain.StatusBreeding))
	c.add(animal(7, "20-A1", "20", domain.GenderFemale, domain.StatusDied))

	all, err := c.svc.Animals(context.Background(), "")
	if err != nil {
		t.Fatalf("animals: %v", err)
	}
	var ids []int64
	for _, a := range all {
		ids = append(ids, a.NumericID)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 7 || ids[2] != 12 {
		t.Fatalf("unexpected order %v", ids)
	}

	caged, err := c.svc.Animals(context.Background(), "20")
	if err != nil || len(caged) != 2 {
		t.Fatalf("cage filter: %v %d", err, len(caged))
	}
	c.assertWrites(0)
}
