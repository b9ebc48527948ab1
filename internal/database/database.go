package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/seuros/raporta/internal/logging"
)

var DB *sql.DB

// Connect connects to database using DATABASE_URL environment variable
func Connect() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return ConnectWithURL(databaseURL)
}

// ConnectWithURL connects to database using provided URL
func ConnectWithURL(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL cannot be empty")
	}

	var err error
	DB, err = sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// The attribution fan-out issues several queries per request; keep
	// enough pooled connections to serve one report without queuing.
	DB.SetMaxOpenConns(16)
	DB.SetMaxIdleConns(8)

	logging.L().Info("database connected")
	return nil
}

func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
