package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"highscore/adapters/dynamodb"
	"highscore/adapters/jsonfile"
	"highscore/adapters/redis"
	"highscore/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage adapter names.
const (
	AdapterMemory   = "memory"
	AdapterSQL      = "sql"
	AdapterRedis    = "redis"
	AdapterFile     = "file"
	AdapterDynamoDB = "dynamodb"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"HIGHSCORE_ENV"`
	Profile     string      `json:"profile" env:"HIGHSCORE_PROFILE"`

	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Realtime RealtimeConfig `json:"realtime"`
	Webhooks WebhookConfig  `json:"webhooks"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"HIGHSCORE_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"HIGHSCORE_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"HIGHSCORE_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"HIGHSCORE_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"HIGHSCORE_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"HIGHSCORE_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"HIGHSCORE_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"HIGHSCORE_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects one adapter; only the selected section is validated.
type StorageConfig struct {
	Adapter  string          `json:"adapter" env:"HIGHSCORE_STORAGE_ADAPTER"`
	Memory   MemoryConfig    `json:"memory,omitempty"`
	SQL      sqlx.Config     `json:"sql,omitempty"`
	Redis    redis.Config    `json:"redis,omitempty"`
	File     jsonfile.Config `json:"file,omitempty"`
	DynamoDB dynamodb.Config `json:"dynamodb,omitempty"`
}

// MemoryConfig holds in-memory storage configuration
type MemoryConfig struct {
	SeedSampleData bool `json:"seed_sample_data" env:"HIGHSCORE_STORAGE_MEMORY_SEED"`
}

// SeedSampleData reports whether the selected adapter is asked to load fixtures.
func (s StorageConfig) SeedSampleData() bool {
	switch s.Adapter {
	case AdapterMemory:
		return s.Memory.SeedSampleData
	case AdapterSQL:
		return s.SQL.SeedSampleData
	case AdapterRedis:
		return s.Redis.SeedSampleData
	case AdapterFile:
		return s.File.SeedSampleData
	case AdapterDynamoDB:
		return s.DynamoDB.SeedSampleData
	}
	return false
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"HIGHSCORE_LOG_LEVEL"`
	Format     string            `json:"format" env:"HIGHSCORE_LOG_FORMAT"`
	Output     string            `json:"output" env:"HIGHSCORE_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"HIGHSCORE_LOG_ATTRIBUTES"`
}

// RealtimeConfig controls the websocket event stream.
type RealtimeConfig struct {
	Enabled      bool          `json:"enabled" env:"HIGHSCORE_REALTIME_ENABLED"`
	Path         string        `json:"path" env:"HIGHSCORE_REALTIME_PATH"`
	BufferSize   int           `json:"buffer_size" env:"HIGHSCORE_REALTIME_BUFFER"`
	WriteTimeout time.Duration `json:"write_timeout" env:"HIGHSCORE_REALTIME_WRITE_TIMEOUT"`
}

// WebhookConfig lists endpoints that receive score events.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"HIGHSCORE_WEBHOOK_ENDPOINTS"`
	Timeout   time.Duration `json:"timeout" env:"HIGHSCORE_WEBHOOK_TIMEOUT"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"HIGHSCORE_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"HIGHSCORE_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"HIGHSCORE_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"HIGHSCORE_SECURITY_RATE_LIMIT_CLEANUP"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
// Scores go to a local SQLite file, like a plain single-host deployment.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api/v1.0",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter:  AdapterSQL,
			SQL:      sqlx.DefaultConfig(sqlx.DriverSQLite),
			Redis:    redis.DefaultConfig(),
			File:     jsonfile.Config{Path: "./data/highscore.json"},
			DynamoDB: dynamodb.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Realtime: RealtimeConfig{
			Enabled:      true,
			Path:         "/ws",
			BufferSize:   256,
			WriteTimeout: 5 * time.Second,
		},
		Webhooks: WebhookConfig{
			Timeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Realtime.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("realtime config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhooks config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if c.Environment == EnvProduction && c.Storage.SeedSampleData() {
		errs = append(errs, "sample data cannot be seeded in production")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
