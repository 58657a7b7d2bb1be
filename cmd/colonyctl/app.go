package main

import (
	"bufio"
	"colonyledger/internal/blob"
	"colonyledger/internal/config"
	"colonyledger/internal/core"
	"colonyledger/pkg/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries the per-invocation wiring shared by every command.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	yes        bool
	verbose    bool

	// Seams for tests.
	openStore func(context.Context, core.StorageConfig) (domain.RecordStore, error)
	openBlob  func(context.Context, blob.Config) (blob.Store, error)

	settings  config.Settings
	logger    *zap.Logger
	store     domain.RecordStore
	svc       *core.Service
	registry  *prometheus.Registry
	traceFile *os.File
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:        bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		openStore: core.OpenRecordStore,
		openBlob:  blob.Open,
	}
}

func (a *app) buildLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if a.verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(a.errOut), zap.NewAtomicLevelAt(level)))
}

// setup loads settings and, when withStore is set, opens the record store
// and builds the service.
func (a *app) setup(ctx context.Context, withStore bool) error {
	settings, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = a.buildLogger()
	if !withStore {
		return nil
	}

	store, err := a.openStore(ctx, settings.Storage)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	a.store = store

	a.registry = prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry, "colonyledger")
	if err != nil {
		return err
	}
	opts := []core.Option{
		core.WithConfig(settings.Colony.Core()),
		core.WithConfirmPolicy(a.confirmPolicy()),
		core.WithLogger(core.NewZapLogger(a.logger)),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(zapAudit{l: a.logger.Named("audit")}),
	}
	if path := settings.Observability.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		a.traceFile = f
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	svc, err := core.NewService(store, opts...)
	if err != nil {
		return err
	}
	a.svc = svc
	return nil
}

// teardown flushes metrics and releases the store.
func (a *app) teardown() error {
	var errs []error
	if a.registry != nil && a.settings.Observability.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.settings.Observability.MetricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.traceFile != nil {
		errs = append(errs, a.traceFile.Close())
		a.traceFile = nil
	}
	if a.store != nil {
		errs = append(errs, core.CloseRecordStore(a.store))
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) confirmPolicy() core.ConfirmPolicy {
	if a.yes {
		return core.AlwaysProceed
	}
	return core.ConfirmFunc(a.ask)
}

// ask prompts on the terminal. Anything but y/yes declines, as does EOF.
func (a *app) ask(_ context.Context, p core.Prompt) (bool, error) {
	fmt.Fprintf(a.out, "%s (y/n): ", p.Message)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// print writes a report. Non-fatal errors such as an all-dead cage are
// reported without failing the command.
func (a *app) print(report core.Report, err error) error {
	if err != nil && core.IsFatal(err) {
		return err
	}
	if report.Message != "" {
		fmt.Fprintln(a.out, report.Message)
	}
	return nil
}

type zapAudit struct {
	l *zap.Logger
}

func (z zapAudit) Record(_ context.Context, e core.AuditEntry) {
	z.l.Debug("operation",
		zap.String("operation", e.Operation),
		zap.String("status", string(e.Status)),
		zap.String("subject", e.Subject),
		zap.Strings("affected", e.Affected),
		zap.Duration("duration", e.Duration),
		zap.String("error", e.Error),
	)
}
