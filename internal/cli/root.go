package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/database"
	"github.com/seuros/raporta/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

// Swappable for tests.
var (
	connectDatabase = database.Connect
	closeDatabase   = database.Close
)

// RootCmd is the base command for the raporta CLI.
var RootCmd = &cobra.Command{
	Use:   "raporta",
	Short: "Privacy-friendly web analytics reporting",
	Long: `Raporta is the reporting backend for privacy-friendly web analytics.

It serves funnel, attribution, channel, and revenue reports over an
API-key-protected JSON API, and exposes the same reports on the command line.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() {
	defer func() { _ = logging.Sync() }()

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ensureDatabase connects if nothing has connected yet, returning a closer
// the caller defers.
func ensureDatabase() (func(), error) {
	if database.DB != nil {
		return func() {}, nil
	}
	if err := connectDatabase(); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return func() { _ = closeDatabase() }, nil
}
