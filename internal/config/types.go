// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uidreg/uidreg/internal/checksum"
	"github.com/uidreg/uidreg/internal/corpus"
	"github.com/uidreg/uidreg/internal/integrity"
	"github.com/uidreg/uidreg/pkg/document"
	"github.com/uidreg/uidreg/pkg/refs"
)

const (
	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn shows warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError shows errors only.
	LogLevelError LogLevel = "error"

	// DefaultRoot is the corpus root used when none is configured.
	DefaultRoot = "data"
	// DefaultRegistry is the registry path used when none is configured.
	DefaultRegistry = "data/meta/version_control/uid_registry.yaml"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel names a logging threshold.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Root is the corpus root; UIDs are derived relative to it.
		Root string `json:"root" mapstructure:"root"`
		// Registry is the persisted registry file.
		Registry string `json:"registry" mapstructure:"registry"`
		// ExcludeDirs are reserved directory names never scanned.
		ExcludeDirs []string `json:"exclude_dirs" mapstructure:"exclude_dirs"`
		Include     []string `json:"include" mapstructure:"include"`
		Exclude     []string `json:"exclude" mapstructure:"exclude"`
		// ReferenceMarker is the mapping key whose string value is a reference.
		ReferenceMarker string `json:"reference_marker" mapstructure:"reference_marker"`
		// VersionField is the dotted path of each document's version.
		VersionField string `json:"version_field" mapstructure:"version_field"`
		// Strict reports defaulted versions and non-string references instead
		// of silently tolerating them.
		Strict bool `json:"strict" mapstructure:"strict"`
		// Workers bounds parallelism; 0 means GOMAXPROCS.
		Workers     int               `json:"workers" mapstructure:"workers"`
		Checksum    ChecksumConfig    `json:"checksum" mapstructure:"checksum"`
		Log         LogConfig         `json:"log" mapstructure:"log"`
		Metrics     MetricsConfig     `json:"metrics" mapstructure:"metrics"`
		Terminology TerminologyConfig `json:"terminology" mapstructure:"terminology"`

		// Source is the file the configuration was read from; empty when only
		// defaults and environment variables applied.
		Source string `json:"-" mapstructure:"-"`
	}

	// ChecksumConfig selects the digest and how stale digests are reported.
	ChecksumConfig struct {
		Algorithm checksum.Algorithm       `json:"algorithm" mapstructure:"algorithm"`
		Policy    integrity.ChecksumPolicy `json:"policy" mapstructure:"policy"`
	}

	// LogConfig configures the CLI logger.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// MetricsConfig configures metrics export.
	MetricsConfig struct {
		// Textfile is a node_exporter textfile collector path; empty disables it.
		Textfile string `json:"textfile" mapstructure:"textfile"`
	}

	// TerminologyConfig points at the terminology dictionary.
	TerminologyConfig struct {
		File string `json:"file" mapstructure:"file"`
	}
)

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Slog maps the level onto log/slog; unknown values map to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Root:            DefaultRoot,
		Registry:        DefaultRegistry,
		ExcludeDirs:     append([]string(nil), corpus.DefaultExcludeDirs...),
		Include:         append([]string(nil), corpus.DefaultInclude...),
		Exclude:         []string{},
		ReferenceMarker: refs.DefaultMarker,
		VersionField:    document.DefaultVersionField,
		Checksum: ChecksumConfig{
			Algorithm: checksum.SHA256,
			Policy:    integrity.ChecksumWarn,
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// IsValid checks every field and collects the failures into an
// *InvalidConfigError.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root must not be empty"))
	}
	if strings.TrimSpace(c.Registry) == "" {
		errs = append(errs, errors.New("registry must not be empty"))
	}
	if strings.TrimSpace(c.ReferenceMarker) == "" {
		errs = append(errs, errors.New("reference_marker must not be empty"))
	}
	if strings.TrimSpace(c.VersionField) == "" {
		errs = append(errs, errors.New("version_field must not be empty"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if err := c.Walker().Validate(); err != nil {
		errs = append(errs, err)
	}
	if ok, fieldErrs := c.Checksum.Algorithm.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Checksum.Policy.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Log.Level.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Walker returns the corpus selection described by the configuration.
func (c *Config) Walker() corpus.Walker {
	return corpus.Walker{
		Root:        c.Root,
		ExcludeDirs: c.ExcludeDirs,
		Include:     c.Include,
		Exclude:     c.Exclude,
	}
}

// ValidatorOptions maps the configuration onto integrity options.
func (c *Config) ValidatorOptions() integrity.Options {
	return integrity.Options{
		Marker:         c.ReferenceMarker,
		VersionField:   c.VersionField,
		Strict:         c.Strict,
		Algorithm:      c.Checksum.Algorithm,
		ChecksumPolicy: c.Checksum.Policy,
		Workers:        c.Workers,
	}
}
