// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/uidreg/uidreg/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `uidreg config` command and its subcommands.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Inspect and create configuration files.

Configuration is read from the file given by --config, else ./uidreg.cue,
else the user config file (` + "`uidreg config path`" + ` prints which one is used).
Any value can be overridden by an UIDREG_* environment variable, e.g.
UIDREG_STRICT=true or UIDREG_CHECKSUM_POLICY=fail.`,
	}

	cmd.AddCommand(
		newConfigShowCommand(app, rootFlags),
		newConfigPathCommand(app, rootFlags),
		newConfigInitCommand(app, rootFlags),
	)

	return cmd
}

func newConfigShowCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatText && format != formatJSON {
				return app.fail(cmd, fmt.Errorf("unknown format %q (valid: text, json)", format), false)
			}
			s, err := app.newSession(cmd.Context(), rootFlags)
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			if format == formatJSON {
				if err := writeJSON(app.stdout, s.cfg); err != nil {
					return app.fail(cmd, err, s.verbose)
				}
				return nil
			}
			renderConfig(app, s.cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "output format: text or json")
	return cmd
}

func renderConfig(app *App, cfg *config.Config) {
	fmt.Fprintln(app.stdout, TitleStyle.Render("Configuration"))
	rows := [][2]string{
		{"root", cfg.Root},
		{"registry", cfg.Registry},
		{"exclude_dirs", listValue(cfg.ExcludeDirs)},
		{"include", listValue(cfg.Include)},
		{"exclude", listValue(cfg.Exclude)},
		{"reference_marker", cfg.ReferenceMarker},
		{"version_field", cfg.VersionField},
		{"strict", fmt.Sprint(cfg.Strict)},
		{"workers", fmt.Sprint(cfg.Workers)},
		{"checksum.algorithm", cfg.Checksum.Algorithm.String()},
		{"checksum.policy", string(cfg.Checksum.Policy)},
		{"log.level", cfg.Log.Level.String()},
		{"metrics.textfile", cfg.Metrics.Textfile},
		{"terminology.file", cfg.Terminology.File},
	}
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = SubtitleStyle.Render("(unset)")
		}
		fmt.Fprintf(app.stdout, "  %-20s %s\n", row[0]+":", value)
	}
}

func listValue(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	return "[" + strings.Join(values, ", ") + "]"
}

func newConfigPathCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ResolvePath(config.LoadOptions{ConfigFilePath: rootFlags.configPath})
			if err != nil {
				return app.fail(cmd, err, rootFlags.verbose)
			}
			if path == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	}
}

func newConfigInitCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var global, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Long: `Write a configuration file with the default values.

By default ./uidreg.cue is created. With --global the user config file is
written instead. Existing files are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.LocalConfigFile
			if rootFlags.configPath != "" {
				path = rootFlags.configPath
			}
			if global {
				userPath, err := config.UserConfigPath("")
				if err != nil {
					return app.fail(cmd, err, rootFlags.verbose)
				}
				path = userPath
			}

			if err := config.WriteFile(path, config.DefaultConfig(), force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					fmt.Fprintf(app.stderr, "%s %s already exists; use --force to overwrite\n", warningIcon, PathStyle.Render(path))
					cmd.SilenceUsage = true
					cmd.SilenceErrors = true
					return &ExitError{Code: ExitSetup, Err: err}
				}
				return app.fail(cmd, err, rootFlags.verbose)
			}
			fmt.Fprintf(app.stdout, "%s Configuration written to %s\n", successIcon, PathStyle.Render(path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write the user config file instead of ./uidreg.cue")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

