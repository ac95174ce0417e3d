// Package highscore assembles a ScoreService with its event wiring.
package highscore

import (
	"context"
	"log/slog"

	mem "highscore/adapters/memory"
	"highscore/analytics"
	"highscore/core"
	"highscore/engine"
	"highscore/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	hub     *realtime.Hub
	hooks   []analytics.Hook
	logger  *slog.Logger
	sample  bool
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all score events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHooks forwards every score event to the given analytics hooks.
func WithHooks(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithSampleData seeds the default in-memory storage. Ignored when WithStorage is used.
func WithSampleData() Option { return func(c *config) { c.sample = true } }

// New builds a configured ScoreService. If not provided, defaults are used:
//   - storage: in-memory
//   - dispatch: async
//   - logger: slog.Default()
func New(opts ...Option) *engine.ScoreService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		var memOpts []mem.Option
		if cfg.sample {
			memOpts = append(memOpts, mem.WithRecords(core.SampleRecords()))
		}
		cfg.storage = mem.New(memOpts...)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	svc := engine.NewScoreService(cfg.storage, engine.NewEventBus(cfg.mode), cfg.logger)
	if cfg.hub != nil {
		svc.Subscribe(cfg.hub.Broadcast, core.EventScoreAccepted, core.EventScoreRejected)
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		svc.Subscribe(func(_ context.Context, e core.Event) { bridge.OnEvent(e) },
			core.EventScoreAccepted, core.EventScoreRejected)
	}
	return svc
}
