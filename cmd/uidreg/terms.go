// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/uidreg/uidreg/internal/issue"
	"github.com/uidreg/uidreg/internal/terminology"

	"github.com/spf13/cobra"
)

type termsFlagValues struct {
	dictionary string
	format     string
}

// newTermsCommand creates the `uidreg terms` command.
func newTermsCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &termsFlagValues{}

	cmd := &cobra.Command{
		Use:   "terms [file...]",
		Short: "Check names against the terminology dictionary",
		Long: `Check names against the terminology dictionary.

Every "name" value in a document is a term. Each term must be listed in the
dictionary, and the file's domain (its top-level directory under the corpus
root, or "general" for root-level files) must be one of the term's domains.

The dictionary has the form:

  terms:
    bond:
      domain: [finance, general]

Examples:
  uidreg terms --dictionary data/meta/terminology.yaml
  uidreg terms data/finance/bond.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerms(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.dictionary, "dictionary", "", "terminology dictionary (default terminology.file from config)")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text or json")

	return cmd
}

func runTerms(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *termsFlagValues, args []string) error {
	if flags.format != formatText && flags.format != formatJSON {
		return app.fail(cmd, fmt.Errorf("unknown format %q (valid: text, json)", flags.format), false)
	}

	s, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}

	dictPath := flags.dictionary
	if dictPath == "" {
		dictPath = s.cfg.Terminology.File
	}
	if dictPath == "" {
		err := fmt.Errorf("%w: no dictionary configured", terminology.ErrInvalidDictionary)
		return app.fail(cmd, newServiceError(err, issue.TerminologyInvalidId, ""), s.verbose)
	}

	dict, err := terminology.Load(dictPath)
	if err != nil {
		return app.fail(cmd, newServiceError(err, issue.TerminologyInvalidId, ""), s.verbose)
	}
	checker, err := terminology.NewChecker(dict, s.cfg.Root)
	if err != nil {
		if errors.Is(err, terminology.ErrInvalidDictionary) {
			err = newServiceError(err, issue.TerminologyInvalidId, "")
		}
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

	var all []terminology.Finding
	for _, file := range files {
		findings, err := checker.CheckFile(file)
		if err != nil {
			return app.fail(cmd, err, s.verbose)
		}
		if len(findings) == 0 {
			continue
		}
		all = append(all, findings...)
		if flags.format == formatText {
			fmt.Fprintf(app.stderr, "Errors in %s:\n", PathStyle.Render(file))
			for _, f := range findings {
				fmt.Fprintf(app.stderr, "  %s %s\n", errorIcon, f.Message)
			}
			fmt.Fprintln(app.stderr)
		}
	}

	if flags.format == formatJSON {
		if all == nil {
			all = []terminology.Finding{}
		}
		if err := writeJSON(app.stdout, all); err != nil {
			return app.fail(cmd, err, s.verbose)
		}
	}

	if len(all) > 0 {
		if flags.format == formatText {
			fmt.Fprintf(app.stderr, "%s %d terminology error(s)\n", errorIcon, len(all))
		}
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitFailed}
	}
	if flags.format == formatText {
		fmt.Fprintf(app.stdout, "%s %d file(s) checked, all terms registered\n", successIcon, len(files))
	}
	return nil
}
