// Package config loads and finalizes the layered service configuration:
// TOML base file, environment overlay file, then environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/mcutler/loom/pkg/database"
	"github.com/mcutler/loom/pkg/identity"
	"github.com/mcutler/loom/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLoomEnv             = "LOOM_ENV"
	EnvLoomShutdownTimeout = "LOOM_SHUTDOWN_TIMEOUT"
	EnvLoomVersion         = "LOOM_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "LOOM_DB_HOST",
	Port:            "LOOM_DB_PORT",
	Name:            "LOOM_DB_NAME",
	User:            "LOOM_DB_USER",
	Password:        "LOOM_DB_PASSWORD",
	SSLMode:         "LOOM_DB_SSL_MODE",
	MaxOpenConns:    "LOOM_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "LOOM_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "LOOM_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "LOOM_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "LOOM_STORAGE_CONTAINER_NAME",
	ConnectionString: "LOOM_STORAGE_CONNECTION_STRING",
	MaxListSize:      "LOOM_STORAGE_MAX_LIST_SIZE",
}

var identityEnv = &identity.Env{
	Enabled:    "LOOM_IDENTITY_ENABLED",
	Issuer:     "LOOM_IDENTITY_ISSUER",
	Audience:   "LOOM_IDENTITY_AUDIENCE",
	DevSubject: "LOOM_IDENTITY_DEV_SUBJECT",
}

// Config is the root configuration for the Loom service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Identity        identity.Config `toml:"identity"`
	API             APIConfig       `toml:"api"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the LOOM_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvLoomEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads an optional .env file, then the base config (if present),
// applies any environment overlay, and finalizes all values. If no
// config.toml exists, defaults and environment variables provide all
// configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Identity.Merge(&overlay.Identity)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Identity.Finalize(identityEnv); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLoomShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLoomVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvLoomEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
