// Package config loads colonyledger settings from a YAML file and
// COLONYLEDGER_* environment variables.
package config

import (
	"colonyledger/internal/blob"
	"colonyledger/internal/core"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COLONYLEDGER_STORAGE_DRIVER.
const EnvPrefix = "COLONYLEDGER"

// Colony mirrors core.Config with file and environment tags.
type Colony struct {
	Columns           core.Columns `mapstructure:"columns"`
	Labels            core.Labels  `mapstructure:"labels"`
	DateLayout        string       `mapstructure:"date_layout"`
	WeaningDays       int          `mapstructure:"weaning_days"`
	CohortSize        int          `mapstructure:"cohort_size"`
	MaxPerCage        int          `mapstructure:"max_per_cage"`
	GenotypingMarkers []string     `mapstructure:"genotyping_markers"`
}

// Core converts the section into the service configuration.
func (c Colony) Core() core.Config {
	return core.Config{
		Columns:           c.Columns,
		Labels:            c.Labels,
		DateLayout:        c.DateLayout,
		WeaningDays:       c.WeaningDays,
		CohortSize:        c.CohortSize,
		MaxPerCage:        c.MaxPerCage,
		GenotypingMarkers: append([]string(nil), c.GenotypingMarkers...),
	}
}

// Observability configures optional metric and trace outputs of the CLI.
type Observability struct {
	MetricsFile string `mapstructure:"metrics_file"`
	TraceFile   string `mapstructure:"trace_file"`
}

// Settings is the full configuration tree.
type Settings struct {
	Storage       core.StorageConfig `mapstructure:"storage"`
	Blob          blob.Config        `mapstructure:"blob"`
	Colony        Colony             `mapstructure:"colony"`
	Observability Observability      `mapstructure:"observability"`
}

// envAliases are short names kept for deployments that predate the nested keys.
var envAliases = []struct{ key, env string }{
	{"storage.sqlite_path", "COLONYLEDGER_SQLITE_PATH"},
	{"storage.postgres_dsn", "COLONYLEDGER_POSTGRES_DSN"},
	{"storage.airtable.api_key", "COLONYLEDGER_AIRTABLE_API_KEY"},
	{"storage.airtable.base_id", "COLONYLEDGER_AIRTABLE_BASE_ID"},
	{"storage.airtable.table", "COLONYLEDGER_AIRTABLE_TABLE"},
	{"blob.s3.access_key_id", "AWS_ACCESS_KEY_ID"},
	{"blob.s3.secret_access_key", "AWS_SECRET_ACCESS_KEY"},
}

func setDefaults(v *viper.Viper) {
	def := core.DefaultConfig()
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "colonyledger.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.airtable.base_id", "")
	v.SetDefault("storage.airtable.table", "")
	v.SetDefault("storage.airtable.api_key", "")
	v.SetDefault("storage.airtable.base_url", "")
	v.SetDefault("storage.airtable.timeout", "30s")
	v.SetDefault("storage.airtable.requests_per_second", 5)
	v.SetDefault("storage.airtable.max_retries", 3)

	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "./exports")
	for _, k := range []string{"bucket", "region", "endpoint", "access_key_id", "secret_access_key", "session_token"} {
		v.SetDefault("blob.s3."+k, "")
	}
	v.SetDefault("blob.s3.path_style", false)

	cols := map[string]string{
		"id":            def.Columns.ID,
		"status":        def.Columns.Status,
		"strain":        def.Columns.Strain,
		"cage":          def.Columns.Cage,
		"animal_id":     def.Columns.AnimalID,
		"born":          def.Columns.Born,
		"gender":        def.Columns.Gender,
		"partner_id":    def.Columns.PartnerID,
		"breeding_date": def.Columns.BreedingDate,
		"father_id":     def.Columns.FatherID,
		"mother_id":     def.Columns.MotherID,
		"weaning_date":  def.Columns.WeaningDate,
	}
	for k, val := range cols {
		v.SetDefault("colony.columns."+k, val)
	}
	labels := map[string]string{
		"available":   def.Labels.Available,
		"breeding":    def.Labels.Breeding,
		"pups":        def.Labels.Pups,
		"maintenance": def.Labels.Maintenance,
		"sacrificed":  def.Labels.Sacrificed,
		"died":        def.Labels.Died,
		"male":        def.Labels.Male,
		"female":      def.Labels.Female,
	}
	for k, val := range labels {
		v.SetDefault("colony.labels."+k, val)
	}
	v.SetDefault("colony.date_layout", def.DateLayout)
	v.SetDefault("colony.weaning_days", def.WeaningDays)
	v.SetDefault("colony.cohort_size", def.CohortSize)
	v.SetDefault("colony.max_per_cage", def.MaxPerCage)
	v.SetDefault("colony.genotyping_markers", def.GenotypingMarkers)

	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.trace_file", "")
}

// New returns a viper instance with defaults and environment bindings but no file.
func New() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, a := range envAliases {
		if err := v.BindEnv(a.key, strings.ToUpper(EnvPrefix+"_"+strings.ReplaceAll(a.key, ".", "_")), a.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", a.env, err)
		}
	}
	return v, nil
}

// Load reads path when given, otherwise looks for colonyledger.yaml in the
// working directory and $HOME/.config/colonyledger. A missing default file is
// not an error; a missing explicit file is.
func Load(path string) (Settings, error) {
	v, err := New()
	if err != nil {
		return Settings{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("colonyledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/colonyledger")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates a prepared viper instance.
func Decode(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Colony.Core().Validate(); err != nil {
		return Settings{}, fmt.Errorf("colony config: %w", err)
	}
	return s, nil
}
