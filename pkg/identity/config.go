package identity

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds OIDC identity settings.
type Config struct {
	Enabled    bool   `toml:"enabled"`
	Issuer     string `toml:"issuer"`
	Audience   string `toml:"audience"`
	DevSubject string `toml:"dev_subject"`
}

// Env maps identity config fields to environment variable names for override injection.
type Env struct {
	Enabled    string
	Issuer     string
	Audience   string
	DevSubject string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields from overlay. The enabled flag always applies; string
// fields only apply when non-empty.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled

	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.Audience != "" {
		c.Audience = overlay.Audience
	}
	if overlay.DevSubject != "" {
		c.DevSubject = overlay.DevSubject
	}
}

func (c *Config) loadDefaults() {
	if c.DevSubject == "" {
		c.DevSubject = "dev-user"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.Enabled = enabled
			}
		}
	}
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.Audience != "" {
		if v := os.Getenv(env.Audience); v != "" {
			c.Audience = v
		}
	}
	if env.DevSubject != "" {
		if v := os.Getenv(env.DevSubject); v != "" {
			c.DevSubject = v
		}
	}
}

func (c *Config) validate() error {
	if c.Enabled && c.Issuer == "" {
		return fmt.Errorf("identity issuer is required when identity is enabled")
	}
	if c.Enabled && c.Audience == "" {
		return fmt.Errorf("identity audience is required when identity is enabled")
	}
	return nil
}
