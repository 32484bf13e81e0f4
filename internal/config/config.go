// =============================================================================
// Charge Reconciler - Configuration Module
// =============================================================================
//
// This module is responsible for loading the reconciliation configuration.
// The configuration names the two tabular sources, the identifier column
// they share, and how the report and logs are written.
//
// CONFIGURATION FILE (config.yaml):
//   field: stripe_charge_id
//   left:
//     path: "donation_rows (18).csv"
//   right:
//     path: unified_payments.csv
//     where: 'row.status == "succeeded"'
//   output:
//     format: text
//
// PRECEDENCE:
//   command-line flags > RECONCILER_* environment > config file > defaults
//   The file and defaults are handled here; flags and environment are bound
//   by the cmd package.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultConfigFile is read when --config is not given. It may be absent.
	DefaultConfigFile = "config.yaml"

	// DefaultField is the identifier column shared by both sources.
	DefaultField = "stripe_charge_id"

	// DefaultLeftPath is the source whose identifiers are already accounted for.
	DefaultLeftPath = "donation_rows (18).csv"

	// DefaultRightPath is the source checked for identifiers missing from the left.
	DefaultRightPath = "unified_payments.csv"
)

// Output formats understood by the report package.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Source formats. An empty format is inferred from the path.
const (
	SourceFormatCSV  = "csv"
	SourceFormatTSV  = "tsv"
	SourceFormatXLSX = "xlsx"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config holds the full reconciliation configuration.
type Config struct {
	// Field is the column holding the identifier in both sources.
	// Default: "stripe_charge_id"
	Field string `yaml:"field"`

	// Left is source A. Its identifiers are considered present.
	Left SourceConfig `yaml:"left"`

	// Right is source B. Identifiers found here but not in Left are reported.
	Right SourceConfig `yaml:"right"`

	// LenientRows skips rows whose width does not match the header, logging a
	// warning, instead of failing the run. A short row still counts when the
	// identifier column is within it.
	// Default: false (fail fast)
	LenientRows bool `yaml:"lenient_rows"`

	// Output controls the report written to standard output.
	Output OutputConfig `yaml:"output"`

	// Log controls diagnostic logging on standard error.
	Log LogConfig `yaml:"log"`
}

// SourceConfig describes one tabular source.
type SourceConfig struct {
	// Path is a local file path, a gs://bucket/object URI or a
	// bq://project/dataset/table URI.
	Path string `yaml:"path"`

	// Label is the name printed in the report. Defaults to Path.
	Label string `yaml:"label"`

	// Format forces the file format: "csv", "tsv" or "xlsx".
	// Default: inferred from the path extension, falling back to csv.
	Format string `yaml:"format"`

	// Sheet selects the worksheet of an XLSX source.
	// Default: the first sheet.
	Sheet string `yaml:"sheet"`

	// Where is an optional CEL predicate over `row`. Rows for which it is
	// false are ignored, e.g. 'row.status == "succeeded"'.
	Where string `yaml:"where"`

	// CSV contains the delimited-text parsing settings.
	CSV CSVSettings `yaml:"csv"`
}

// CSVSettings contains settings for parsing delimited text sources.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a single character or one of the
	// aliases "tab", "pipe", "semicolon".
	// Default: "," (tab for tsv sources)
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column names. Rows above it
	// (report titles, export metadata) are skipped.
	// Default: 1
	HeaderRow int `yaml:"header_row"`

	// Encoding of the file. "UTF-8", "UTF-16", "ISO-8859-1", "Windows-1252".
	// A UTF-8 byte order mark is always stripped.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// StrictQuotes rejects quotes that do not follow RFC 4180.
	// Default: false (lazy quotes, as exported by most reporting tools)
	StrictQuotes bool `yaml:"strict_quotes"`
}

// OutputConfig controls the report.
type OutputConfig struct {
	// Format is one of "text", "json", "yaml", "table".
	// Default: "text"
	Format string `yaml:"format"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "console" or "json".
	// Default: "console"
	Format string `yaml:"format"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the Config struct with defaults applied.
//   - An error if the file cannot be read or parsed. A missing file yields
//     an error wrapping os.ErrNotExist so callers can fall back to Default.
//
// The result is not validated: callers apply their overrides first and then
// call Validate.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.Left.Path == "" {
		cfg.Left.Path = DefaultLeftPath
	}
	if cfg.Right.Path == "" {
		cfg.Right.Path = DefaultRightPath
	}
	applySourceDefaults(&cfg.Left)
	applySourceDefaults(&cfg.Right)

	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatText
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// applySourceDefaults fills in per-source defaults.
func applySourceDefaults(src *SourceConfig) {
	if src.Label == "" {
		src.Label = src.Path
	}
	if src.CSV.HeaderRow == 0 {
		src.CSV.HeaderRow = 1
	}
	if src.CSV.Encoding == "" {
		src.CSV.Encoding = "UTF-8"
	}
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return recerrors.NewConfigError("field", "identifier column must not be empty", nil)
	}

	if err := c.Left.validate("left"); err != nil {
		return err
	}
	if err := c.Right.validate("right"); err != nil {
		return err
	}

	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML, FormatTable:
	default:
		return recerrors.NewConfigError("output.format", fmt.Sprintf("unknown format %q", c.Output.Format), nil)
	}

	return nil
}

// validate checks a single source configuration.
func (s *SourceConfig) validate(key string) error {
	if strings.TrimSpace(s.Path) == "" {
		return recerrors.NewConfigError(key+".path", "source path must not be empty", nil)
	}

	switch strings.ToLower(s.Format) {
	case "", SourceFormatCSV, SourceFormatTSV, SourceFormatXLSX:
	default:
		return recerrors.NewConfigError(key+".format", fmt.Sprintf("unknown source format %q", s.Format), nil)
	}

	if s.CSV.HeaderRow < 1 {
		return recerrors.NewConfigError(key+".csv.header_row", "must be at least 1", nil)
	}

	return nil
}

// SetPath points the source at path. A label that was defaulted from the
// previous path follows it.
func (s *SourceConfig) SetPath(path string) {
	if s.Label == "" || s.Label == s.Path {
		s.Label = path
	}
	s.Path = path
}
