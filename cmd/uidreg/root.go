// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	configPath string
	verbose    bool
	logLevel   string
	root       string
	registry   string
}

// NewRootCommand builds the uidreg command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "uidreg",
		Short: "UID registry and cross-reference integrity checker",
		Long: TitleStyle.Render("uidreg") + SubtitleStyle.Render(" - UID registry and cross-reference integrity checker") + `

uidreg assigns every document in a YAML corpus a UID derived from its path
and declared version, records them in a registry, and verifies that every
$ref between documents points at a registered UID and an existing field.

` + SubtitleStyle.Render("Examples:") + `
  uidreg build                       Rebuild the registry
  uidreg build --check               Fail when the registry is out of date
  uidreg validate                    Validate every corpus file
  uidreg validate data/a/y.yaml      Validate one file
  uidreg graph                       Print documents in dependency order
  uidreg config show                 Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./uidreg.cue, then the user config dir)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.root, "root", "", "corpus root directory")
	pf.StringVar(&flags.registry, "registry", "", "registry file path")

	rootCmd.AddCommand(
		newBuildCommand(app, flags),
		newValidateCommand(app, flags),
		newGraphCommand(app, flags),
		newTermsCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
		newCompletionCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitSetup)
	}
	app.installDefault = true

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
