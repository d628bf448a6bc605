package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// DefaultDescriptor is the descriptor file looked up when no path is
// given.
const DefaultDescriptor = "shellforge.cue"

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shellforge",
		Short: "Shellforge - Reproducible Development Environments",
		Long: `Shellforge resolves declarative environment descriptors into
reproducible development shells.

Features:
  - Typed descriptors via CUE
  - Light procedural outputs via Starlark
  - Pinned package snapshots per platform
  - Lockfiles for revision drift detection
  - Policy enforcement`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand(version))
	rootCmd.AddCommand(newResolveCommand(version))
	rootCmd.AddCommand(newLockCommand(version))
	rootCmd.AddCommand(newEnterCommand(version))
	rootCmd.AddCommand(newPlatformsCommand())
	rootCmd.AddCommand(newWatchCommand(version))

	return rootCmd
}
