// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/uidreg/uidreg/internal/integrity"
	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/internal/watch"

	"github.com/spf13/cobra"
)

type watchFlagValues struct {
	write    bool
	debounce time.Duration
}

// newWatchCommand creates the `uidreg watch` command.
func newWatchCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &watchFlagValues{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and revalidate whenever corpus files change",
		Long: `Rebuild and revalidate whenever corpus files change.

The registry is rebuilt in memory after every change and the whole corpus is
validated against it. The registry file on disk is only rewritten with
--write. Changes inside excluded directories are ignored.

Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, app, rootFlags, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.write, "write", false, "write the rebuilt registry after each change")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", watch.DefaultDebounce, "quiet period before a rebuild")

	return cmd
}

func runWatch(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *watchFlagValues) error {
	s, err := app.newSession(cmd.Context(), rootFlags)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}

	cycle := func(ctx context.Context) error {
		defer s.flushMetrics()

		res, err := s.builder().Build(ctx)
		if err != nil {
			renderServiceError(app.stderr, classifyError(err), s.verbose)
			return nil
		}
		if flags.write {
			if err := registry.Save(s.cfg.Registry, res.Registry); err != nil {
				return err
			}
		}

		files, err := s.cfg.Walker().Files(ctx)
		if err != nil {
			return err
		}
		opts := s.cfg.ValidatorOptions()
		opts.Logger = s.log
		opts.Metrics = s.metrics
		v, err := integrity.New(res.Registry, s.cfg.Root, opts)
		if err != nil {
			return err
		}
		report, err := v.ValidateCorpus(ctx, files)
		if report != nil {
			renderReport(app.stdout, app.stderr, report)
		}
		return err
	}

	fmt.Fprintf(app.stdout, "%s Initial check of %s\n", infoIcon, PathStyle.Render(s.cfg.Root))
	if err := cycle(cmd.Context()); err != nil {
		fmt.Fprintf(app.stderr, "%s Initial check failed: %v\n", warningIcon, err)
	}

	w, err := watch.New(watch.Config{
		Walker:   s.cfg.Walker(),
		Debounce: flags.debounce,
		Logger:   s.log,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "\n%s %d file(s) changed, rechecking\n", infoIcon, len(changed))
			return cycle(ctx)
		},
	})
	if err != nil {
		return app.fail(cmd, err, s.verbose)
	}

	fmt.Fprintf(app.stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n", infoIcon)
	if err := w.Run(cmd.Context()); err != nil {
		return app.fail(cmd, err, s.verbose)
	}
	return nil
}
