// Package sqlite provides an embedded SQLite-backed record store. The working
// set lives in memory and the full record list is snapshotted as a JSON blob
// after every successful write.
package sqlite

import (
	"bytes"
	"colonyledger/internal/infra/persistence/memory"
	"colonyledger/pkg/domain"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.RecordStore = (*Store)(nil)

const recordsBucket = "records"

// Store persists the in-memory state to a single SQLite table.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates the working set.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "colonyledger.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, recordsBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&snapshot.Records); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(s.ExportState().Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, recordsBucket, data); err != nil {
		return fmt.Errorf("upsert %s: %w", recordsBucket, err)
	}
	return tx.Commit()
}

// Insert adds a record, then snapshots state to SQLite.
func (s *Store) Insert(ctx context.Context, fields domain.Fields) (domain.Record, error) {
	rec, err := s.Store.Insert(ctx, fields)
	if err != nil {
		return rec, err
	}
	return rec, s.persist(ctx)
}

// UpdateByField patches the first match, then snapshots state to SQLite.
func (s *Store) UpdateByField(ctx context.Context, field string, value any, patch domain.Fields) (domain.Record, error) {
	rec, err := s.Store.UpdateByField(ctx, field, value, patch)
	if err != nil {
		return rec, err
	}
	return rec, s.persist(ctx)
}

// Update patches a record by handle, then snapshots state to SQLite.
func (s *Store) Update(ctx context.Context, id string, patch domain.Fields) (domain.Record, error) {
	rec, err := s.Store.Update(ctx, id, patch)
	if err != nil {
		return rec, err
	}
	return rec, s.persist(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
