// Package export renders colony records as JSON, CSV or YAML artifacts and
// stores them in a blob store.
package export

import (
	"bytes"
	"colonyledger/internal/blob"
	"colonyledger/internal/core"
	"colonyledger/pkg/domain"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Format names an artifact encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// DefaultPrefix is the key prefix used when a request leaves it blank.
const DefaultPrefix = "exports"

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv",
	FormatYAML: "application/yaml",
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(v string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q", v)
	}
	return f, nil
}

// Source supplies the animals to export and the sheet layout to render them in.
type Source interface {
	Animals(ctx context.Context, cage string) ([]domain.Animal, error)
	Config() core.Config
}

// Request selects what to export. An empty Cage exports the whole colony.
type Request struct {
	Format Format
	Cage   string
	Prefix string
}

// Artifact describes a stored export.
type Artifact struct {
	Key    string `json:"key" yaml:"key"`
	Format Format `json:"format" yaml:"format"`
	Count  int    `json:"count" yaml:"count"`
	Size   int64  `json:"size" yaml:"size"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Exporter writes colony snapshots to a blob store.
type Exporter struct {
	source Source
	store  blob.Store
	logger core.Logger
	now    func() time.Time
	newID  func() string
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithLogger installs a structured logger.
func WithLogger(l core.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the timestamp embedded in artifact keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the random component of artifact keys.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New constructs an exporter.
func New(source Source, store blob.Store, opts ...Option) (*Exporter, error) {
	if source == nil {
		return nil, errors.New("export source required")
	}
	if store == nil {
		return nil, errors.New("blob store required")
	}
	e := &Exporter{
		source: source,
		store:  store,
		logger: core.NewZapLogger(nil),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Export renders the selected animals and stores them as a new artifact.
func (e *Exporter) Export(ctx context.Context, req Request) (Artifact, error) {
	format := req.Format
	if format == "" {
		format = FormatJSON
	}
	if _, ok := contentTypes[format]; !ok {
		return Artifact{}, fmt.Errorf("unsupported export format %q", format)
	}
	animals, err := e.source.Animals(ctx, req.Cage)
	if err != nil {
		return Artifact{}, fmt.Errorf("export: %w", err)
	}
	table := newTable(e.source.Config(), animals)
	for _, a := range animals {
		if a.Status == domain.StatusUnknown && a.StoredStatus != "" {
			e.logger.Warn("exporting unrecognised status label", "animal", a.AnimalID, "label", a.StoredStatus)
		}
	}

	var payload []byte
	switch format {
	case FormatJSON:
		payload, err = table.json()
	case FormatCSV:
		payload, err = table.csv()
	case FormatYAML:
		payload, err = table.yaml()
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", format, err)
	}

	prefix := strings.Trim(req.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	key := path.Join(prefix, e.now().Format("20060102T150405Z")+"-"+e.newID()+"."+string(format))
	meta := map[string]string{"count": strconv.Itoa(len(animals)), "format": string(format)}
	if req.Cage != "" {
		meta["cage"] = req.Cage
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentTypes[format], Metadata: meta})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}

	art := Artifact{Key: info.Key, Format: format, Count: len(animals), Size: info.Size}
	url, err := e.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{})
	switch {
	case err == nil:
		art.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		e.logger.Warn("export url unavailable", "key", info.Key, "error", err)
	}
	e.logger.Info("colony exported", "key", art.Key, "format", format, "count", art.Count, "bytes", art.Size)
	return art, nil
}

// table is the sheet view of a set of animals: configured column names in a
// fixed order and display labels for statuses, genders and dates.
type table struct {
	columns []string
	rows    [][]string
}

func newTable(cfg core.Config, animals []domain.Animal) table {
	c := cfg.Columns
	t := table{columns: []string{
		c.ID, c.AnimalID, c.Status, c.Strain, c.Cage, c.Gender, c.Born,
		c.PartnerID, c.BreedingDate, c.FatherID, c.MotherID, c.WeaningDate,
	}}
	for _, a := range animals {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(a.NumericID, 10),
			a.AnimalID,
			label(cfg.Labels.StatusLabel(a.Status), a.StoredStatus),
			a.Strain,
			a.Cage,
			label(cfg.Labels.GenderLabel(a.Gender), a.StoredGender),
			cfg.FormatDate(a.Born),
			a.PartnerID,
			cfg.FormatDate(a.BreedingDate),
			a.FatherID,
			a.MotherID,
			cfg.FormatDate(a.WeaningDate),
		})
	}
	return t
}

// label prefers the configured label and falls back to the stored one.
func label(configured, stored string) string {
	if configured != "" {
		return configured
	}
	return stored
}

func (t table) csv() ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// json emits one object per animal; blank columns are omitted.
func (t table) json() ([]byte, error) {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string, len(row))
		for i, v := range row {
			if v != "" {
				obj[t.columns[i]] = v
			}
		}
		out = append(out, obj)
	}
	return json.MarshalIndent(out, "", "  ")
}

// yaml keeps the column order, which a plain map would lose.
func (t table) yaml() ([]byte, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, v := range row {
			if v == "" {
				continue
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: t.columns[i]},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
			)
		}
		seq.Content = append(seq.Content, m)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{seq}}
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
