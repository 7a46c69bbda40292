// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/uidreg/uidreg/internal/config"
	"github.com/uidreg/uidreg/internal/corpus"
	"github.com/uidreg/uidreg/internal/issue"
	"github.com/uidreg/uidreg/internal/metrics"
	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/pkg/document"
	"github.com/uidreg/uidreg/pkg/uid"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer; every command handler receives it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		// installDefault makes each session logger the process-wide slog
		// default. Only Execute sets it; tests keep loggers local.
		installDefault bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// session is the per-invocation state shared by a command's steps.
	session struct {
		cfg     *config.Config
		log     *slog.Logger
		metrics *metrics.Metrics
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// newSession loads configuration, applies global flag overrides, and builds
// the logger and metrics for one command run.
func (a *App) newSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	if flags.root != "" {
		cfg.Root = flags.root
	}
	if flags.registry != "" {
		cfg.Registry = flags.registry
	}
	if flags.logLevel != "" {
		level := config.LogLevel(flags.logLevel)
		if ok, errs := level.IsValid(); !ok {
			return nil, errors.Join(errs...)
		}
		cfg.Log.Level = level
	}
	if flags.verbose {
		cfg.Log.Level = config.LogLevelDebug
	}

	logger := slog.New(log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  log.Level(cfg.Log.Level.Slog()),
	}))
	if a.installDefault {
		slog.SetDefault(logger)
	}
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "source", cfg.Source)
	}

	return &session{
		cfg:     cfg,
		log:     logger,
		metrics: metrics.New(),
		verbose: flags.verbose,
	}, nil
}

// builder returns a registry builder configured for the session.
func (s *session) builder() *registry.Builder {
	return &registry.Builder{
		Walker:       s.cfg.Walker(),
		Algorithm:    s.cfg.Checksum.Algorithm,
		Marker:       s.cfg.ReferenceMarker,
		VersionField: s.cfg.VersionField,
		Strict:       s.cfg.Strict,
		Workers:      s.cfg.Workers,
		Logger:       s.log,
		Metrics:      s.metrics,
	}
}

// loadRegistry reads the configured registry file.
func (s *session) loadRegistry() (*registry.Registry, error) {
	reg, err := registry.Load(s.cfg.Registry)
	switch {
	case err == nil:
		return reg, nil
	case errors.Is(err, registry.ErrRegistryNotFound):
		return nil, newServiceError(err, issue.RegistryNotFoundId, "")
	default:
		return nil, newServiceError(err, issue.RegistryInvalidId, "")
	}
}

// flushMetrics writes the textfile export when one is configured.
func (s *session) flushMetrics() {
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		s.log.Warn("failed to write metrics textfile", "path", s.cfg.Metrics.Textfile, "error", err)
	}
}

// fail renders err on stderr and converts it into an exit error. Errors that
// are already exit errors pass through unchanged.
func (a *App) fail(cmd *cobra.Command, err error, verbose bool) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	svcErr := classifyError(err)
	renderServiceError(a.stderr, svcErr, verbose)
	return &ExitError{Code: ExitSetup, Err: err}
}

// classifyError attaches the catalog entry matching a known failure.
func classifyError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return newServiceError(err, ae.Issue, "")
	}

	var collision *registry.UIDCollisionError
	switch {
	case errors.As(err, &collision):
		return newServiceError(err, issue.UIDCollisionId, "")
	case errors.Is(err, corpus.ErrRootUnreadable):
		return newServiceError(err, issue.CorpusUnreadableId, "")
	case errors.Is(err, document.ErrParse):
		return newServiceError(err, issue.DocumentParseErrorId, "")
	case errors.Is(err, uid.ErrMalformedLocation):
		return newServiceError(err, issue.DocumentParseErrorId, "")
	case errors.Is(err, registry.ErrRegistryNotFound):
		return newServiceError(err, issue.RegistryNotFoundId, "")
	case errors.Is(err, registry.ErrInvalidRegistry):
		return newServiceError(err, issue.RegistryInvalidId, "")
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidLogLevel):
		return newServiceError(err, issue.ConfigLoadFailedId, "")
	default:
		return newServiceError(err, 0, "")
	}
}
