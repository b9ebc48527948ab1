package cli

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seuros/raporta/internal/config"
	"github.com/seuros/raporta/internal/database"
	"github.com/seuros/raporta/internal/handlers"
	"github.com/seuros/raporta/internal/logging"
	"github.com/seuros/raporta/internal/reports"
	"github.com/seuros/raporta/internal/store"
)

var (
	serveDatabaseURL string
	servePort        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reporting API server",
	Long: `Start the HTTP server exposing the reporting API.

Configuration is read from raporta.toml and the environment; flags win.

Examples:
  raporta serve
  raporta serve --port 8080 --database-url postgres://localhost/analytics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveDatabaseURL, servePort)
	},
}

func runServe(databaseURL, port string) error {
	cfg, err := config.LoadWithOverrides(databaseURL, port, "")
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database URL configured (set RAPORTA_DATABASE_URL or database_url in raporta.toml)")
	}

	if err := database.ConnectWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() { _ = database.Close() }()

	workers := cfg.MaxConcurrentQueries
	if workers <= 0 {
		workers = 4
	}
	handlers.SetEngine(reports.NewEngine(store.New(database.DB, "pgx"), workers))

	app := fiber.New(createFiberConfig("Raporta"))
	handlers.RegisterRoutes(app)

	addr := cfg.Host + ":" + cfg.Port
	if cfg.Port == "" {
		addr = cfg.Host + ":3000"
	}

	logging.L().Info("starting reporting server",
		zap.String("addr", addr),
		zap.Int("workers", workers))

	return app.Listen(addr)
}

func init() {
	serveCmd.Flags().StringVar(&serveDatabaseURL, "database-url", "", "Postgres connection URL")
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on")

	RootCmd.AddCommand(serveCmd)
}
