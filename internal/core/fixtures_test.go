package core

import (
	"colonyledger/internal/infra/persistence/memory"
	"colonyledger/pkg/domain"
	"context"
	"sync"
	"testing"
	"time"
)

// countingStore counts mutating calls and can be told to fail them.
type countingStore struct {
	domain.RecordStore
	writes  int
	failErr error
}

func (c *countingStore) Insert(ctx context.Context, fields domain.Fields) (domain.Record, error) {
	c.writes++
	if c.failErr != nil {
		return domain.Record{}, c.failErr
	}
	return c.RecordStore.Insert(ctx, fields)
}

func (c *countingStore) UpdateByField(ctx context.Context, field string, value any, patch domain.Fields) (domain.Record, error) {
	c.writes++
	if c.failErr != nil {
		return domain.Record{}, c.failErr
	}
	return c.RecordStore.UpdateByField(ctx, field, value, patch)
}

func (c *countingStore) Update(ctx context.Context, id string, patch domain.Fields) (domain.Record, error) {
	c.writes++
	if c.failErr != nil {
		return domain.Record{}, c.failErr
	}
	return c.RecordStore.Update(ctx, id, patch)
}

// colony is a service over a seeded in-memory store.
type colony struct {
	t     *testing.T
	mem   *memory.Store
	store *countingStore
	svc   *Service
}

func newColony(t *testing.T, opts ...Option) *colony {
	t.Helper()
	mem := memory.NewStore()
	store := &countingStore{RecordStore: mem}
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &colony{t: t, mem: mem, store: store, svc: svc}
}

// add seeds an animal without counting it as a service write.
func (c *colony) add(a domain.Animal) domain.Animal {
	c.t.Helper()
	rec, err := c.mem.Insert(context.Background(), c.svc.encode(a))
	if err != nil {
		c.t.Fatalf("seed %s: %v", a.AnimalID, err)
	}
	return c.svc.decode(rec)
}

func (c *colony) get(animalID string) domain.Animal {
	c.t.Helper()
	a, err := c.svc.FindAnimal(context.Background(), animalID)
	if err != nil {
		c.t.Fatalf("find %s: %v", animalID, err)
	}
	return a
}

func (c *colony) cage(cage string) []domain.Animal {
	c.t.Helper()
	out, err := c.svc.CageOccupants(context.Background(), cage)
	if err != nil {
		c.t.Fatalf("cage %s: %v", cage, err)
	}
	return out
}

func (c *colony) assertWrites(want int) {
	c.t.Helper()
	if c.store.writes != want {
		c.t.Fatalf("expected %d store writes, got %d", want, c.store.writes)
	}
}

func animal(numeric int64, animalID, cage string, g domain.Gender, st domain.Status) domain.Animal {
	return domain.Animal{NumericID: numeric, AnimalID: animalID, Cage: cage, Gender: g, Status: st, Strain: "WT"}
}

func day(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := time.Parse(DefaultDateLayout, v)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return d
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, e := range c.entries {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (c *captureLogger) log(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, logLine{level: level, msg: msg, args: args})
}

func (c *captureLogger) Debug(msg string, args ...any) { c.log("debug", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.log("info", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.log("warn", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.log("error", msg, args) }

func (c *captureLogger) count(level string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		if l.level == level {
			n++
		}
	}
	return n
}

// recordingPolicy answers every prompt with answer and remembers the prompts.
type recordingPolicy struct {
	answer  bool
	err     error
	prompts []Prompt
}

func (r *recordingPolicy) Confirm(_ context.Context, p Prompt) (bool, error) {
	r.prompts = append(r.prompts, p)
	return r.answer, r.err
}
