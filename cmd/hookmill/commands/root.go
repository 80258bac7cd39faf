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

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hookmill",
		Short: "Hookmill - Release Lifecycle Hook Orchestrator",
		Long: `Hookmill orchestrates release-lifecycle hooks for package-based
deployments: manifests annotated with lifecycle phases run as out-of-band
workloads around the install, upgrade, rollback, and delete operations,
without joining the release's tracked resource set.

Features:
  - Phase binding via manifest annotations (pre/post x install/upgrade/delete/rollback)
  - Per-kind readiness gating with run-to-completion polling
  - Rego admission policies for hooks
  - SQLite-backed operation history
  - Prometheus metrics and OpenTelemetry tracing`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newOperateCommand("install", "Run the install operation",
		"Runs pre-install hooks, loads non-hook resources, then runs post-install hooks."))
	rootCmd.AddCommand(newOperateCommand("upgrade", "Run the upgrade operation",
		"Runs pre-upgrade hooks, loads non-hook resources, then runs post-upgrade hooks."))
	rootCmd.AddCommand(newOperateCommand("rollback", "Run the rollback operation",
		"Runs pre-rollback hooks, loads non-hook resources, then runs post-rollback hooks."))
	rootCmd.AddCommand(newOperateCommand("delete", "Run the delete operation",
		"Runs pre-delete hooks, delegates resource removal, then runs post-delete hooks."))
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
