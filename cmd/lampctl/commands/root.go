// Package commands implements the lampctl CLI surface. The commands here
// are the only callers of the engine's plan/simulate/execute entry points.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lampctl/lampctl/pkg/engine"
)

// Exit codes. Rollback outcomes are distinguished so wrapping automation
// can tell a restored host from one needing manual remediation.
const (
	exitOK                 = 0
	exitFailure            = 1
	exitRolledBack         = 2
	exitRollbackIncomplete = 3
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := newRootCommand(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailure
	}
	return exitOK
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lampctl",
		Short: "lampctl - Transactional LAMP stack provisioning",
		Long: `lampctl provisions a LAMP stack (Apache, MariaDB, PHP) and per-site
virtual hosts on a single Debian/Ubuntu host.

Every command builds an ordered plan of operations, previews it, and only
mutates the system after explicit confirmation. On the first failure the
already-applied operations are rolled back in reverse order; anything that
cannot be undone is reported, never silently dropped.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInstallStackCommand())
	rootCmd.AddCommand(newCreateSiteCommand())
	rootCmd.AddCommand(newJournalCommand())

	return rootCmd
}

// exitError carries a specific exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCodeFor maps a terminal run state to the exit-code convention.
func exitCodeFor(state engine.RunState) int {
	switch state {
	case engine.RunStateCompleted, engine.RunStateSimulated:
		return exitOK
	case engine.RunStateRolledBack:
		return exitRolledBack
	case engine.RunStateRollbackIncomplete:
		return exitRollbackIncomplete
	}
	return exitFailure
}

func logLevel(configured string) string {
	if verbose {
		return "debug"
	}
	return configured
}

func logFormat(configured string) string {
	if jsonOutput {
		return "json"
	}
	return configured
}
