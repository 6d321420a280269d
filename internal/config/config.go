// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"taskmanager/internal/storage"
)

// Storage drivers accepted in Config.Storage.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	AppEnv string `env:"TASKMANAGER_ENV" envDefault:"development"`
	Addr   string `env:"TASKMANAGER_ADDR" envDefault:":8080"`

	// Storage backend and its connection settings
	Storage     string `env:"TASKMANAGER_STORAGE" envDefault:"sqlite"`
	DBPath      string `env:"TASKMANAGER_DB_PATH" envDefault:"data/taskmanager.db"`
	DatabaseURL string `env:"TASKMANAGER_DATABASE_URL"`

	// What happens to tasks when their assignee is deleted: restrict or cascade
	UserDeletePolicy string `env:"TASKMANAGER_USER_DELETE_POLICY" envDefault:"restrict"`

	LogLevel  string `env:"TASKMANAGER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TASKMANAGER_LOG_FORMAT" envDefault:"text"`

	ReadTimeout     time.Duration `env:"TASKMANAGER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"TASKMANAGER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"TASKMANAGER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Parse reads environment variables without validating them. Callers apply
// overrides and then call Validate.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Storage {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("sqlite storage requires TASKMANAGER_DB_PATH")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("postgres storage requires TASKMANAGER_DATABASE_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage)
	}

	if _, err := c.DeletePolicy(); err != nil {
		return err
	}
	return nil
}

// DeletePolicy returns the parsed user delete policy.
func (c *Config) DeletePolicy() (storage.DeletePolicy, error) {
	return storage.ParseDeletePolicy(c.UserDeletePolicy)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
