// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/uidreg/uidreg/internal/dag"
	"github.com/uidreg/uidreg/internal/issue"
	"github.com/uidreg/uidreg/pkg/uid"

	"github.com/spf13/cobra"
)

type graphFlagValues struct {
	dependents  string
	failOnCycle bool
	format      string
}

type graphOutput struct {
	Order      []uid.UID      `json:"order,omitempty"`
	Dependents []uid.UID      `json:"dependents,omitempty"`
	Cycle      []uid.UID      `json:"cycle,omitempty"`
	Dangling   []dag.Dangling `json:"dangling,omitempty"`
}

// newGraphCommand creates the `uidreg graph` command.
func newGraphCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &graphFlagValues{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Analyze dependencies recorded in the registry",
		Long: `Analyze dependencies recorded in the registry.

Without flags, prints every registered UID in dependency order: a document
appears after everything it references. Cycles are reported as a warning, or
as a failure with --fail-on-cycle.

With --dependents, prints every document that directly or transitively
references the given UID, i.e. what a change to it may affect.

Examples:
  uidreg graph
  uidreg graph --dependents a:x@1.0.0
  uidreg graph --fail-on-cycle --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, app, rootFlags, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dependents, "dependents", "", "list transitive dependents of this UID")
	cmd.Flags().BoolVar(&flags.failOnCycle, "fail-on-cycle", false, "exit 1 when the graph has a cycle")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text or json")

	return cmd
}

func runGraph(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *graphFlagValues) error {
	if flags.format != formatText && flags.format != formatJSON {
		return app.fail(cmd, fmt.Errorf("unknown format %q (valid: text, json)", flags.format), false)
	}

	s, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}

	reg, err := s.loadRegistry()
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}
	g := dag.FromRegistry(reg)
	out := graphOutput{Dangling: g.Dangling()}

	for _, d := range out.Dangling {
		s.log.Debug("reference to unregistered uid", "from", d.From, "to", d.To)
	}

	if flags.dependents != "" {
		target := uid.UID(flags.dependents)
		if !g.Has(target) {
			return app.fail(cmd, fmt.Errorf("uid %s is not registered", target), s.verbose)
		}
		out.Dependents = g.Dependents(target)
		if flags.format == formatJSON {
			return writeGraphJSON(cmd, app, out)
		}
		if len(out.Dependents) == 0 {
			fmt.Fprintf(app.stdout, "%s Nothing references %s\n", infoIcon, PathStyle.Render(string(target)))
			return nil
		}
		for _, u := range out.Dependents {
			fmt.Fprintln(app.stdout, u)
		}
		return nil
	}

	order, sortErr := g.TopologicalSort()
	var cycleErr *dag.CycleError
	if errors.As(sortErr, &cycleErr) {
		out.Cycle = cycleErr.Cycle
	} else if sortErr != nil {
		return app.fail(cmd, sortErr, s.verbose)
	}
	out.Order = order

	if flags.format == formatJSON {
		if err := writeGraphJSON(cmd, app, out); err != nil {
			return err
		}
	} else {
		for _, u := range out.Order {
			fmt.Fprintln(app.stdout, u)
		}
		if cycleErr != nil {
			fmt.Fprintf(app.stderr, "%s %s\n", warningIcon, cycleErr)
		}
		if n := len(out.Dangling); n > 0 {
			fmt.Fprintf(app.stderr, "%s %d reference(s) to unregistered UIDs; run %s for details\n",
				warningIcon, n, PathStyle.Render("uidreg validate"))
		}
	}

	if cycleErr != nil && flags.failOnCycle {
		if flags.format == formatText {
			renderIssue(app.stderr, issue.DependencyCycleId)
		}
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitFailed, Err: cycleErr}
	}
	return nil
}

func writeGraphJSON(cmd *cobra.Command, app *App, out graphOutput) error {
	if err := writeJSON(app.stdout, out); err != nil {
		return app.fail(cmd, err, false)
	}
	return nil
}
