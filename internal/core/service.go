// Package core implements the colony manager: lifecycle transitions,
// cohort/id allocation, litter partitioning and lineage resolution over an
// abstract record store.
package core

import (
	"colonyledger/pkg/domain"
	"context"
	"fmt"
	"strings"
)

// Report is the human-readable outcome of an operation. It is returned
// alongside the error, including for aborts and non-fatal outcomes.
type Report struct {
	Operation string
	Message   string
	Aborted   bool
	Animals   []domain.Animal
}

// Service manages animal records held in a RecordStore.
type Service struct {
	store   domain.RecordStore
	cfg     Config
	confirm ConfirmPolicy
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// Option customises a Service.
type Option func(*Service)

// WithConfig replaces the default column/label configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg.clone() }
}

// WithConfirmPolicy installs the policy consulted at the occupied-cage and
// unknown-strain decision points. The default declines.
func WithConfirmPolicy(p ConfirmPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.confirm = p
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer installs an operation tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder installs an audit sink receiving one entry per operation.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides the time source used for durations and audit stamps.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewService constructs a service over store.
func NewService(store domain.RecordStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	s := &Service{
		store:   store,
		cfg:     DefaultConfig(),
		confirm: AlwaysAbort,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

// Config returns a copy of the active configuration.
func (s *Service) Config() Config { return s.cfg.clone() }

// Store returns the underlying record store.
func (s *Service) Store() domain.RecordStore { return s.store }

func (s *Service) run(ctx context.Context, op, subject string, fn func(context.Context) (Report, error)) (Report, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	report, err := fn(ctx)
	report.Operation = op
	if report.Message == "" && err != nil {
		report.Message = err.Error()
	}
	span.End(err)
	elapsed := s.clock.Now().Sub(start)
	fatal := IsFatal(err)
	s.metrics.Observe(ctx, op, !fatal, elapsed)

	entry := AuditEntry{
		Operation:  op,
		Status:     AuditStatusSuccess,
		Subject:    subject,
		Message:    report.Message,
		OccurredAt: start,
		Duration:   elapsed,
	}
	for _, a := range report.Animals {
		entry.Affected = append(entry.Affected, a.AnimalID)
	}
	switch {
	case err != nil:
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	case report.Aborted:
		entry.Status = AuditStatusAborted
	}
	s.audit.Record(ctx, entry)

	switch {
	case fatal:
		s.logger.Error("colony operation failed", "operation", op, "subject", subject, "error", err, "duration", elapsed)
	case err != nil:
		s.logger.Warn("colony operation reported", "operation", op, "subject", subject, "error", err)
	case report.Aborted:
		s.logger.Warn("colony operation aborted", "operation", op, "subject", subject, "reason", report.Message)
	default:
		s.logger.Info("colony operation completed", "operation", op, "subject", subject, "affected", len(report.Animals), "duration", elapsed)
	}
	return report, err
}

// ask consults the confirmation policy. A declined prompt yields an aborted report.
func (s *Service) ask(ctx context.Context, p Prompt) (Report, bool, error) {
	ok, err := s.confirm.Confirm(ctx, p)
	if err != nil {
		return Report{}, false, fmt.Errorf("confirm %s: %w", p.Kind, err)
	}
	if !ok {
		s.logger.Debug("confirmation declined", "kind", p.Kind, "subject", p.Subject)
		return Report{Aborted: true, Message: "Ending call prematurely: " + p.Message}, false, nil
	}
	return Report{}, true, nil
}

func (s *Service) findAnimal(ctx context.Context, animalID string) (domain.Animal, error) {
	if strings.TrimSpace(animalID) == "" {
		return domain.Animal{}, ValidationError{Rule: RuleRequiredArgument, Message: "animal id required"}
	}
	recs, err := s.store.Find(ctx, s.cfg.Columns.AnimalID, animalID)
	if err != nil {
		return domain.Animal{}, fmt.Errorf("find animal %s: %w", animalID, err)
	}
	if len(recs) == 0 {
		return domain.Animal{}, NotFoundError{Entity: EntityAnimal, ID: animalID}
	}
	return s.decode(recs[0]), nil
}

// FindAnimal looks up one animal by its human-facing id.
func (s *Service) FindAnimal(ctx context.Context, animalID string) (domain.Animal, error) {
	return s.findAnimal(ctx, animalID)
}

// CageOccupants returns every record in cage, living or not, in store order.
func (s *Service) CageOccupants(ctx context.Context, cage string) ([]domain.Animal, error) {
	if strings.TrimSpace(cage) == "" {
		return nil, ValidationError{Rule: RuleRequiredArgument, Message: "cage required"}
	}
	recs, err := s.store.Find(ctx, s.cfg.Columns.Cage, cage)
	if err != nil {
		return nil, fmt.Errorf("find cage %s: %w", cage, err)
	}
	out := make([]domain.Animal, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.decode(rec))
	}
	return out, nil
}

// cageExists reports whether any record is assigned to cage.
func (s *Service) cageExists(ctx context.Context, cage string) (bool, error) {
	recs, err := s.store.Find(ctx, s.cfg.Columns.Cage, cage)
	if err != nil {
		return false, fmt.Errorf("find cage %s: %w", cage, err)
	}
	return len(recs) > 0, nil
}

// Animals lists every animal ordered by numeric id, or the occupants of cage
// when one is given.
func (s *Service) Animals(ctx context.Context, cage string) ([]domain.Animal, error) {
	if strings.TrimSpace(cage) != "" {
		return s.CageOccupants(ctx, cage)
	}
	recs, err := s.store.FindSorted(ctx, s.cfg.Columns.ID, domain.Ascending, 0)
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}
	out := make([]domain.Animal, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.decode(rec))
	}
	return out, nil
}
