package core

import (
	"colonyledger/internal/infra/persistence/airtable"
	"colonyledger/internal/infra/persistence/memory"
	"colonyledger/internal/infra/persistence/postgres"
	"colonyledger/internal/infra/persistence/sqlite"
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"io"
	"time"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageAirtable StorageDriver = "airtable" // hosted Airtable table
)

// AirtableConfig holds the hosted table coordinates.
type AirtableConfig struct {
	BaseID            string        `mapstructure:"base_id"`
	Table             string        `mapstructure:"table"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// StorageConfig selects and parameterises a backend. An empty Driver means sqlite.
type StorageConfig struct {
	Driver      StorageDriver  `mapstructure:"driver"`
	SQLitePath  string         `mapstructure:"sqlite_path"`
	PostgresDSN string         `mapstructure:"postgres_dsn"`
	Airtable    AirtableConfig `mapstructure:"airtable"`
}

// OpenRecordStore opens the backend named by cfg.Driver. Callers release it
// with CloseRecordStore.
func OpenRecordStore(ctx context.Context, cfg StorageConfig) (domain.RecordStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageAirtable:
		c, err := airtable.New(airtable.Config(cfg.Airtable))
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseRecordStore closes store if its backend holds resources.
func CloseRecordStore(store domain.RecordStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
