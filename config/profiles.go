package config

import (
	"fmt"
	"time"

	"highscore/adapters/sqlx"
)

// profiles adjust DefaultConfig for a deployment environment.
var profiles = map[string]func(*Config){
	"development": func(c *Config) {
		c.Environment = EnvDevelopment
		c.Logging.Level = "debug"
		c.Logging.Format = "text"
		c.Storage.Adapter = AdapterMemory
		c.Storage.Memory.SeedSampleData = true
	},
	"testing": func(c *Config) {
		c.Environment = EnvTesting
		c.Logging.Level = "warn"
		c.Storage.Adapter = AdapterMemory
		c.Realtime.Enabled = false
	},
	"staging": func(c *Config) {
		c.Environment = EnvStaging
		c.Storage.Adapter = AdapterSQL
		c.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
		c.Security.EnableRateLimit = true
	},
	"production": func(c *Config) {
		c.Environment = EnvProduction
		c.Server.CORSOrigin = ""
		c.Server.ShutdownTimeout = 60 * time.Second
		c.Storage.Adapter = AdapterSQL
		c.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
		c.Security.EnableRateLimit = true
		c.Security.RateLimit.RequestsPerMinute = 120
		c.Security.RateLimit.BurstSize = 20
	},
}

// Profiles lists the known profile names.
func Profiles() []string {
	return []string{"development", "testing", "staging", "production"}
}

// LoadProfile builds the named preset, applies environment overrides and validates it.
func LoadProfile(name string) (*Config, error) {
	apply, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg := DefaultConfig()
	cfg.Profile = name
	apply(cfg)

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for profile %s: %w", name, err)
	}
	return cfg, nil
}
