// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/uidreg/uidreg/internal/integrity"

	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type validateFlagValues struct {
	all    bool
	format string
}

// newValidateCommand creates the `uidreg validate` command.
func newValidateCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &validateFlagValues{}

	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check documents against the registry",
		Long: `Check documents against the registry.

Each file must be registered, every reference must name a registered UID, and
every fragment must name an existing field of the referenced document.
Checksum drift is reported according to checksum.policy.

Files may be given relative to the working directory or to the corpus root.
Without arguments (or with --all) every corpus file is validated.

Examples:
  uidreg validate
  uidreg validate data/a/y.yaml
  uidreg validate --format json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "validate every corpus file")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text or json")

	return cmd
}

func runValidate(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *validateFlagValues, args []string) error {
	if flags.format != formatText && flags.format != formatJSON {
		return app.fail(cmd, fmt.Errorf("unknown format %q (valid: text, json)", flags.format), false)
	}
	if flags.all && len(args) > 0 {
		return app.fail(cmd, errors.New("--all cannot be combined with file arguments"), false)
	}

	s, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}
	defer s.flushMetrics()

	reg, err := s.loadRegistry()
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}

	files := make([]string, 0, len(args))
	for _, arg := range args {
		files = append(files, corpusPath(s.cfg.Root, arg))
	}
	if len(files) == 0 {
		files, err = s.cfg.Walker().Files(cmd.Context())
		if err != nil {
			return app.fail(cmd, err, s.verbose)
		}
	}

	opts := s.cfg.ValidatorOptions()
	opts.Logger = s.log
	opts.Metrics = s.metrics
	v, err := integrity.New(reg, s.cfg.Root, opts)
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}

	// A cancelled run still returns the files that completed; show them
	// before reporting the interruption.
	report, err := v.ValidateCorpus(cmd.Context(), files)
	if report != nil {
		if renderErr := renderValidation(app, flags.format, report); renderErr != nil {
			err = errors.Join(err, renderErr)
		}
	}
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}

	if !report.OK() {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitFailed}
	}
	return nil
}

// corpusPath maps a command-line path to a root-relative location. Paths
// that resolve inside root are made relative to it; anything else is passed
// through for the validator to judge.
func corpusPath(root, arg string) string {
	if _, err := os.Stat(arg); err == nil || filepath.IsAbs(arg) {
		absRoot, rootErr := filepath.Abs(root)
		absArg, argErr := filepath.Abs(arg)
		if rootErr == nil && argErr == nil {
			if rel, relErr := filepath.Rel(absRoot, absArg); relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(arg)
}

func renderValidation(app *App, format string, report *integrity.Report) error {
	if format == formatJSON {
		return writeJSON(app.stdout, report)
	}
	renderReport(app.stdout, app.stderr, report)
	return nil
}

// renderReport prints one block per file with findings, then a summary.
// Failing files go to stderr in the "Errors in <file>:" layout.
func renderReport(stdout, stderr io.Writer, report *integrity.Report) {
	errorCount := 0
	for _, res := range report.Results {
		if len(res.Errors) == 0 {
			continue
		}
		out, heading := stdout, "Warnings in"
		if res.Failed() {
			out, heading = stderr, "Errors in"
		}
		fmt.Fprintf(out, "%s %s:\n", heading, PathStyle.Render(res.File))
		for _, e := range res.Errors {
			icon := warningIcon
			if e.Failing() {
				icon = errorIcon
				errorCount++
			}
			fmt.Fprintf(out, "  %s %s %s\n", icon, e.Message, KindStyle.Render("["+e.Kind.String()+"]"))
		}
		fmt.Fprintln(out)
	}

	failed := len(report.Failed())
	if failed == 0 {
		fmt.Fprintf(stdout, "%s %d file(s) validated, no integrity errors\n", successIcon, len(report.Results))
		return
	}
	fmt.Fprintf(stderr, "%s %d of %d file(s) failed with %d error(s)\n", errorIcon, failed, len(report.Results), errorCount)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
