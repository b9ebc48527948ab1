package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/config"
	"github.com/seuros/raporta/internal/database"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending database migrations",
	Long: `Apply any pending schema migrations to the configured database.

Examples:
  raporta migrate
  raporta migrate --database-url postgres://localhost/analytics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(migrateDatabaseURL)
	},
}

func runMigrate(databaseURL string) error {
	cfg, err := config.LoadWithOverrides(databaseURL, "", "")
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database URL configured (set RAPORTA_DATABASE_URL or database_url in raporta.toml)")
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("Migrations applied successfully")
	return nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "Postgres connection URL")

	RootCmd.AddCommand(migrateCmd)
}
