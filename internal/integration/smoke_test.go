package integration

import (
	"bytes"
	"colonyledger/internal/adapters/export"
	"colonyledger/internal/blob"
	"colonyledger/internal/core"
	"colonyledger/pkg/domain"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"
)

// TestIntegrationSmoke walks one breeding cycle (pairing, birth, weaning,
// export) against every embedded record store and local blob driver.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		cfg  func(t *testing.T) core.StorageConfig
	}{
		{"memory-store", func(*testing.T) core.StorageConfig {
			return core.StorageConfig{Driver: core.StorageMemory}
		}},
		{"sqlite-store", func(t *testing.T) core.StorageConfig {
			return core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "colony.db")}
		}},
	}
	blobVariants := []struct {
		name string
		cfg  func(t *testing.T) blob.Config
	}{
		{"memory-blob", func(*testing.T) blob.Config { return blob.Config{Driver: blob.DriverMemory} }},
		{"filesystem-blob", func(t *testing.T) blob.Config {
			return blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()}
		}},
	}

	for _, sv := range storeVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				store, err := core.OpenRecordStore(ctx, sv.cfg(t))
				if err != nil {
					t.Fatalf("open store: %v", err)
				}
				t.Cleanup(func() { _ = core.CloseRecordStore(store) })
				blobs, err := blob.Open(ctx, bv.cfg(t))
				if err != nil {
					t.Fatalf("open blob: %v", err)
				}

				var traces bytes.Buffer
				tracer := core.NewJSONTracer(&traces)
				svc, err := core.NewService(store,
					core.WithConfirmPolicy(core.AlwaysProceed),
					core.WithTracer(tracer),
				)
				if err != nil {
					t.Fatalf("new service: %v", err)
				}

				seed(t, store, domain.Fields{"ID": 1, "Animal ID": "20-A1", "Cage Card": "20", "Gender": "M", "Status": "A: Available", "Strain": "WT"})
				seed(t, store, domain.Fields{"ID": 2, "Animal ID": "21-A1", "Cage Card": "21", "Gender": "F", "Status": "A: Available", "Strain": "WT"})

				paired := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
				if _, err := svc.SetBreeding(ctx, core.BreedingRequest{Cage: "1071", Date: paired, MaleID: "20-A1", FemaleID: "21-A1"}); err != nil {
					t.Fatalf("set breeding: %v", err)
				}
				if _, err := svc.Birth(ctx, "1071", paired.AddDate(0, 0, 29)); err != nil {
					t.Fatalf("birth: %v", err)
				}
				if _, err := svc.Weaned(ctx, core.WeaningRequest{
					Cage:        "1071",
					Strain:      "WT",
					FemaleCount: 3,
					FemaleCage:  "7000",
					MaleCount:   2,
					MaleCage:    "7001",
				}); err != nil {
					t.Fatalf("weaned: %v", err)
				}
				letter, err := svc.NextCohortLetter(ctx, "1071")
				if err != nil || letter != "B" {
					t.Fatalf("next cohort: %q %v", letter, err)
				}

				pups, err := svc.CageOccupants(ctx, "7000")
				if err != nil || len(pups) != 3 {
					t.Fatalf("female cage: %d %v", len(pups), err)
				}
				if pups[0].MotherID != "21-A1_WT" || pups[0].FatherID != "20-A1_WT" {
					t.Fatalf("lineage not recorded: %+v", pups[0])
				}

				exp, err := export.New(svc, blobs, export.WithIDGenerator(func() string { return "smoke" }))
				if err != nil {
					t.Fatalf("new exporter: %v", err)
				}
				art, err := exp.Export(ctx, export.Request{Format: export.FormatJSON})
				if err != nil {
					t.Fatalf("export: %v", err)
				}
				if art.Count != 7 {
					t.Fatalf("expected 7 animals exported, got %d", art.Count)
				}
				_, rc, err := blobs.Get(ctx, art.Key)
				if err != nil {
					t.Fatalf("get artifact: %v", err)
				}
				defer rc.Close()
				raw, _ := io.ReadAll(rc)
				var rows []map[string]any
				if err := json.Unmarshal(raw, &rows); err != nil || len(rows) != 7 {
					t.Fatalf("artifact body: %d rows, %v", len(rows), err)
				}

				if len(tracer.Entries()) != 3 {
					t.Fatalf("expected 3 traced operations, got %d", len(tracer.Entries()))
				}
			})
		}
	}
}

// TestSQLiteStateSurvivesRestart reopens the database between operations.
func TestSQLiteStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "colony.db")}

	store, err := core.OpenRecordStore(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seed(t, store, domain.Fields{"ID": 5, "Animal ID": "50-A1", "Cage Card": "50", "Gender": "M", "Status": "A: Available", "Strain": "WT"})
	svc, err := core.NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Sacrifice(ctx, "50-A1"); err != nil {
		t.Fatalf("sacrifice: %v", err)
	}
	if err := core.CloseRecordStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := core.OpenRecordStore(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = core.CloseRecordStore(reopened) })
	svc, err = core.NewService(reopened)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	a, err := svc.FindAnimal(ctx, "50-A1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if a.Status != domain.StatusSacrificed {
		t.Fatalf("status after restart: %v", a.Status)
	}
	next, err := svc.NextNumericID(ctx)
	if err != nil || next != 6 {
		t.Fatalf("next id after restart: %d %v", next, err)
	}
}

func seed(t *testing.T, store domain.RecordStore, fields domain.Fields) {
	t.Helper()
	if _, err := store.Insert(context.Background(), fields); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
