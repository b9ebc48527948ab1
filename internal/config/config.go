package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration for the reporting server.
type Config struct {
	DatabaseURL          string
	Host                 string
	Port                 string
	DataDir              string
	TrustedOrigins       []string
	QueryTimeout         time.Duration
	MaxConcurrentQueries int
}

// Load reads configuration from raporta.toml (current directory, then the
// XDG config directory) with environment variables taking precedence.
func Load() (*Config, error) {
	return LoadWithOverrides("", "", "")
}

// LoadWithOverrides is Load with optional flag-level overrides, which win
// over both the config file and the environment.
func LoadWithOverrides(databaseURL, port, dataDir string) (*Config, error) {
	v := newBaseViper()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment may be enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		DatabaseURL:          v.GetString("database_url"),
		Host:                 v.GetString("server.host"),
		Port:                 v.GetString("port"),
		DataDir:              v.GetString("data_dir"),
		QueryTimeout:         v.GetDuration("reports.query_timeout"),
		MaxConcurrentQueries: v.GetInt("reports.max_concurrent_queries"),
	}

	if origins := v.GetString("trusted_origins"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.TrustedOrigins = append(cfg.TrustedOrigins, origin)
			}
		}
	}

	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if port != "" {
		cfg.Port = port
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("raporta")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if configHome := configDir(); configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "raporta"))
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("port", "3000")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("reports.query_timeout", 30*time.Second)
	v.SetDefault("reports.max_concurrent_queries", 4)

	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("data_dir", "DATA_DIR")
	_ = v.BindEnv("trusted_origins", "TRUSTED_ORIGINS")
	_ = v.BindEnv("reports.query_timeout", "RAPORTA_QUERY_TIMEOUT")
	_ = v.BindEnv("reports.max_concurrent_queries", "RAPORTA_MAX_CONCURRENT_QUERIES")

	return v
}

// SaveConfig writes the configuration to a TOML file with restrictive
// permissions (the file contains the database password).
func SaveConfig(cfg *Config) error {
	configPath := getConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")

	if cfg.DatabaseURL != "" {
		v.Set("database_url", cfg.DatabaseURL)
	}
	v.Set("server.host", "0.0.0.0")
	if cfg.Port != "" {
		v.Set("port", cfg.Port)
	}
	if cfg.DataDir != "" {
		v.Set("data_dir", cfg.DataDir)
	}
	if len(cfg.TrustedOrigins) > 0 {
		v.Set("trusted_origins", strings.Join(cfg.TrustedOrigins, ","))
	}
	if cfg.QueryTimeout > 0 {
		v.Set("reports.query_timeout", cfg.QueryTimeout.String())
	}
	if cfg.MaxConcurrentQueries > 0 {
		v.Set("reports.max_concurrent_queries", cfg.MaxConcurrentQueries)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if _, err := os.Stat("raporta.toml"); err == nil {
		return "raporta.toml"
	}

	if configHome := configDir(); configHome != "" {
		return filepath.Join(configHome, "raporta", "raporta.toml")
	}

	return "raporta.toml"
}

func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	return configHome
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ParseDatabaseURL parses a PostgreSQL connection URL
func ParseDatabaseURL(url string) DatabaseConfig {
	cfg := DatabaseConfig{
		Host:    "localhost",
		Port:    5432,
		SSLMode: "disable",
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		url = strings.TrimPrefix(url, "postgres://")
		url = strings.TrimPrefix(url, "postgresql://")

		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			userPass := parts[0]
			if idx := strings.Index(userPass, ":"); idx > -1 {
				cfg.User = userPass[:idx]
				cfg.Password = userPass[idx+1:]
			} else {
				cfg.User = userPass
			}

			remainder := parts[1]

			if idx := strings.Index(remainder, "?"); idx > -1 {
				params := remainder[idx+1:]
				remainder = remainder[:idx]

				for _, param := range strings.Split(params, "&") {
					kv := strings.Split(param, "=")
					if len(kv) == 2 && kv[0] == "sslmode" {
						cfg.SSLMode = kv[1]
					}
				}
			}

			if idx := strings.Index(remainder, "/"); idx > -1 {
				hostPort := remainder[:idx]
				cfg.Name = remainder[idx+1:]

				if idx := strings.LastIndex(hostPort, ":"); idx > -1 {
					cfg.Host = hostPort[:idx]
					if port := hostPort[idx+1:]; port != "" {
						_, _ = fmt.Sscanf(port, "%d", &cfg.Port)
					}
				} else {
					cfg.Host = hostPort
				}
			}
		}
	}

	return cfg
}

// BuildDatabaseURL constructs a PostgreSQL connection URL from configuration
func BuildDatabaseURL(cfg DatabaseConfig) string {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	url := fmt.Sprintf("postgres://%s", cfg.User)
	if cfg.Password != "" {
		url += fmt.Sprintf(":%s", cfg.Password)
	}
	url += fmt.Sprintf("@%s:%d/%s?sslmode=%s", cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	return url
}
