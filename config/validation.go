package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

func join(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func oneOf(field, value string, valid []string) string {
	if slices.Contains(valid, value) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", "))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return join(errs)
}

// Validate validates storage configuration. Only the selected adapter's
// section is checked.
func (s *StorageConfig) Validate() error {
	valid := []string{AdapterMemory, AdapterSQL, AdapterRedis, AdapterFile, AdapterDynamoDB}
	if msg := oneOf("adapter", s.Adapter, valid); msg != "" {
		return errors.New(msg)
	}

	var err error
	switch s.Adapter {
	case AdapterSQL:
		err = s.SQL.Validate()
	case AdapterRedis:
		err = s.Redis.Validate()
	case AdapterFile:
		err = s.File.Validate()
	case AdapterDynamoDB:
		err = s.DynamoDB.Validate()
	}
	if err != nil {
		return fmt.Errorf("%s config: %w", s.Adapter, err)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	for _, msg := range []string{
		oneOf("level", l.Level, []string{"debug", "info", "warn", "error"}),
		oneOf("format", l.Format, []string{"json", "text"}),
		oneOf("output", l.Output, []string{"stdout", "stderr"}),
	} {
		if msg != "" {
			errs = append(errs, msg)
		}
	}
	return join(errs)
}

// Validate validates realtime configuration
func (r *RealtimeConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	var errs []string
	if !strings.HasPrefix(r.Path, "/") {
		errs = append(errs, "path must start with /")
	}
	if r.BufferSize <= 0 {
		errs = append(errs, "buffer_size must be positive")
	}
	if r.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	return join(errs)
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	var errs []string
	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when endpoints are configured")
	}
	return join(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	return join(errs)
}
