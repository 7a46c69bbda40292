// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/pkg/uid"

	"github.com/spf13/cobra"
)

type buildFlagValues struct {
	output string
	check  bool
}

// newBuildCommand creates the `uidreg build` command.
func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan the corpus and write the UID registry",
		Long: `Scan the corpus and write the UID registry.

Every selected file is parsed, assigned a UID from its path and declared
version, checksummed, and scanned for references. Two files deriving the same
UID abort the build; nothing is written.

With --check the registry is rebuilt in memory and compared with the file on
disk. The command exits 1 when they differ, which suits CI.

Examples:
  uidreg build
  uidreg build --output registry.json
  uidreg build --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, app, rootFlags, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the registry here instead of the configured path")
	cmd.Flags().BoolVar(&flags.check, "check", false, "compare with the existing registry instead of writing it")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *buildFlagValues) error {
	s, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}
	defer s.flushMetrics()

	target := s.cfg.Registry
	if flags.output != "" {
		target = flags.output
	}

	res, err := s.builder().Build(cmd.Context())
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(app.stderr, "%s %s: %s\n", warningIcon, PathStyle.Render(w.File), w.Message)
	}

	if flags.check {
		return checkRegistry(cmd, app, target, res.Registry)
	}

	if err := registry.Save(target, res.Registry); err != nil {
		return app.fail(cmd, err, s.verbose)
	}
	fmt.Fprintf(app.stdout, "%s Registry written: %d entries from %d files %s %s\n",
		successIcon, res.Registry.Len(), res.Files, infoIcon, PathStyle.Render(target))
	return nil
}

// checkRegistry compares the freshly built registry with the one at path.
func checkRegistry(cmd *cobra.Command, app *App, path string, built *registry.Registry) error {
	existing, err := registry.Load(path)
	if errors.Is(err, registry.ErrRegistryNotFound) {
		existing = registry.New(nil)
	} else if err != nil {
		return app.fail(cmd, err, false)
	}

	changes := existing.Diff(built)
	if changes.Empty() {
		fmt.Fprintf(app.stdout, "%s Registry is up to date (%d entries)\n", successIcon, built.Len())
		return nil
	}

	fmt.Fprintf(app.stderr, "%s Registry %s is out of date:\n", errorIcon, PathStyle.Render(path))
	writeChanges(app.stderr, "+", changes.Added)
	writeChanges(app.stderr, "-", changes.Removed)
	writeChanges(app.stderr, "~", changes.Changed)
	fmt.Fprintf(app.stderr, "\nRun %s to update it.\n", PathStyle.Render("uidreg build"))

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: ExitFailed}
}

func writeChanges(w io.Writer, mark string, uids []uid.UID) {
	for _, u := range uids {
		fmt.Fprintf(w, "  %s %s\n", mark, u)
	}
}
