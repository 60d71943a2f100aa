// Package config loads the process environment for the CLI: where state
// lives, how to reach the order-management database, and the tracking-sheet
// service credentials.
//
// Everything here is deployment environment, not pipeline policy; policy
// lives in the tracker manifest. Values come from an optional config file,
// environment variables, and an optional .env file for local development,
// in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved process environment.
type Config struct {
	// StateDir holds the JSON artifacts and the audit database.
	StateDir string `mapstructure:"state_dir"`

	// AuditDBPath overrides the audit database location. Defaults to
	// audit.db inside StateDir.
	AuditDBPath string `mapstructure:"audit_db_path"`

	OrderDB OrderDBConfig `mapstructure:"order_db"`
	Sheet   SheetConfig   `mapstructure:"sheet"`
}

// OrderDBConfig reaches the order-management PostgreSQL database. An empty
// Host disables the integration.
type OrderDBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Enabled reports whether an order database is configured.
func (c OrderDBConfig) Enabled() bool {
	return c.Host != ""
}

// DSN renders the pgx connection string.
func (c OrderDBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

// SheetConfig reaches the tracking-sheet service. An empty Token disables
// the integration.
type SheetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	SheetID string `mapstructure:"sheet_id"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Enabled reports whether a sheet service is configured.
func (c SheetConfig) Enabled() bool {
	return c.Token != "" && c.SheetID != ""
}

// Load resolves the configuration. configFile may be empty; envFile names a
// .env file loaded best-effort for local development.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("ASMTRACK")
	v.AutomaticEnv()

	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("order_db.port", 5432)
	v.SetDefault("order_db.user", "readonly")
	v.SetDefault("order_db.name", "orders")
	v.SetDefault("order_db.connect_timeout", 10*time.Second)
	v.SetDefault("sheet.requests_per_second", 5.0)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Credentials come from the environment, never the config file.
	if host := os.Getenv("ORDER_DB_HOST"); host != "" {
		cfg.OrderDB.Host = host
	}
	if user := os.Getenv("ORDER_DB_USER"); user != "" {
		cfg.OrderDB.User = user
	}
	if pass := os.Getenv("ORDER_DB_PASSWORD"); pass != "" {
		cfg.OrderDB.Password = pass
	}
	if name := os.Getenv("ORDER_DB_NAME"); name != "" {
		cfg.OrderDB.Name = name
	}
	if token := os.Getenv("SHEET_TOKEN"); token != "" {
		cfg.Sheet.Token = token
	}
	if id := os.Getenv("SHEET_ID"); id != "" {
		cfg.Sheet.SheetID = id
	}

	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = filepath.Join(cfg.StateDir, "audit.db")
	}
	return &cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".asmtrack"
	}
	return filepath.Join(home, ".asmtrack")
}
