// Package memory provides an in-memory implementation of the colony record
// store used for tests, ephemeral environments, and as the working set of the
// snapshotting SQL backends.
package memory

import (
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain store interface.
var _ domain.RecordStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// Fields aliases domain.Fields.
	Fields = domain.Fields
)

// Snapshot captures a point-in-time clone of the store state. Records are
// kept in insertion order.
type Snapshot struct {
	Records []Record `json:"records"`
}

// Store keeps records in insertion order behind a read/write mutex.
type Store struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]Record
	nowFn func() time.Time
	idFn  func() string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		rows:  make(map[string]Record),
		nowFn: func() time.Time { return time.Now().UTC() },
		idFn:  newRecordID,
	}
}

// newRecordID mimics the hosted store's opaque handles ("rec" + 14 chars).
func newRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

// SetClock overrides the creation-time source; intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// Find returns every record whose field matches value, in insertion order.
func (s *Store) Find(ctx context.Context, field string, value any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0)
	for _, id := range s.order {
		rec := s.rows[id]
		if domain.ValuesEqual(rec.Fields[field], value) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// FindSorted returns up to limit records ordered by field. Records missing
// the field are skipped. A non-positive limit returns every record.
func (s *Store) FindSorted(ctx context.Context, field string, dir domain.SortDirection, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.rows[id]
		if _, ok := rec.Fields[field]; !ok {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		c := domain.CompareValues(out[i].Fields[field], out[j].Fields[field])
		if dir == domain.Descending {
			return c > 0
		}
		return c < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Insert appends a new record and returns it with its assigned handle.
func (s *Store) Insert(ctx context.Context, fields Fields) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.idFn()
	for _, exists := s.rows[id]; exists; _, exists = s.rows[id] {
		id = s.idFn()
	}
	rec := Record{ID: id, Fields: domain.ApplyPatch(nil, fields), CreatedAt: s.nowFn()}
	s.rows[id] = rec
	s.order = append(s.order, id)
	return cloneRecord(rec), nil
}

// UpdateByField patches the first record whose field matches value.
func (s *Store) UpdateByField(ctx context.Context, field string, value any, patch Fields) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if domain.ValuesEqual(s.rows[id].Fields[field], value) {
			return s.patchLocked(id, patch), nil
		}
	}
	return Record{}, fmt.Errorf("update %s=%v: %w", field, value, domain.ErrRecordNotFound)
}

// Update patches the record with the given handle.
func (s *Store) Update(ctx context.Context, id string, patch Fields) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return Record{}, fmt.Errorf("update %s: %w", id, domain.ErrRecordNotFound)
	}
	return s.patchLocked(id, patch), nil
}

func (s *Store) patchLocked(id string, patch Fields) Record {
	rec := s.rows[id]
	rec.Fields = domain.ApplyPatch(rec.Fields, patch)
	s.rows[id] = rec
	return cloneRecord(rec)
}

// All returns every record in insertion order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneRecord(s.rows[id]))
	}
	return out
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	return Snapshot{Records: s.All()}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]Record, len(snapshot.Records))
	s.order = s.order[:0]
	for _, rec := range snapshot.Records {
		if rec.ID == "" {
			rec.ID = s.idFn()
		}
		if _, dup := s.rows[rec.ID]; dup {
			continue
		}
		s.rows[rec.ID] = cloneRecord(rec)
		s.order = append(s.order, rec.ID)
	}
}

func cloneRecord(rec Record) Record {
	rec.Fields = rec.Fields.Clone()
	return rec
}
