package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	wsadapter "highscore/adapters/websocket"
	"highscore/analytics"
	"highscore/api/httpapi"
	"highscore/config"
	"highscore/engine"
	"highscore/highscore"
	"highscore/integrations/webhook"
	"highscore/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Stats   *analytics.Stats
	Service *engine.ScoreService
	Handler http.Handler
	Server  *http.Server
}

func provideConfig() (*config.Config, error) {
	if path := os.Getenv("HIGHSCORE_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	if profile := os.Getenv("HIGHSCORE_PROFILE"); profile != "" {
		return config.LoadProfile(profile)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

// provideHub returns nil when the event stream is disabled.
func provideHub(cfg *config.Config) *realtime.Hub {
	if !cfg.Realtime.Enabled {
		return nil
	}
	return realtime.NewHub()
}

func provideStats() *analytics.Stats {
	return analytics.NewStats()
}

// provideStorage opens the configured adapter. The cleanup func closes it.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	storage, err := cfg.Storage.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("storage ready", "adapter", cfg.Storage.Adapter, "seeded", cfg.Storage.SeedSampleData())
	cleanup := func() {
		if err := storage.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}
	return storage, cleanup, nil
}

// provideService wires the service, the realtime hub, stats and webhooks
// onto one event bus. The cleanup func drains pending events.
func provideService(cfg *config.Config, logger *slog.Logger, storage engine.Storage, hub *realtime.Hub, stats *analytics.Stats) (*engine.ScoreService, func()) {
	hooks := []analytics.Hook{stats}
	if len(cfg.Webhooks.Endpoints) > 0 {
		hooks = append(hooks, webhook.New(cfg.Webhooks.Endpoints,
			webhook.WithTimeout(cfg.Webhooks.Timeout),
			webhook.WithLogger(logger),
		))
	}
	opts := []highscore.Option{
		highscore.WithStorage(storage),
		highscore.WithDispatchMode(engine.DispatchAsync),
		highscore.WithLogger(logger),
		highscore.WithHooks(hooks...),
	}
	if hub != nil {
		opts = append(opts, highscore.WithRealtime(hub))
	}
	svc := highscore.New(opts...)
	return svc, svc.Close
}

func provideHandler(cfg *config.Config, logger *slog.Logger, svc *engine.ScoreService, hub *realtime.Hub, stats *analytics.Stats) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		WebSocketPath:    cfg.Realtime.Path,
		WebSocket: wsadapter.Options{
			Buffer:       cfg.Realtime.BufferSize,
			WriteTimeout: cfg.Realtime.WriteTimeout,
		},
		Stats:  stats,
		Logger: logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
