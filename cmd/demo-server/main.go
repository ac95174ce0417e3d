package main

import (
	"log/slog"
	"net/http"
	"os"

	"highscore/analytics"
	"highscore/api/httpapi"
	"highscore/engine"
	"highscore/highscore"
	"highscore/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	hub := realtime.NewHub()
	stats := analytics.NewStats()
	svc := highscore.New(
		highscore.WithSampleData(),
		highscore.WithRealtime(hub),
		highscore.WithHooks(stats),
		highscore.WithDispatchMode(engine.DispatchAsync),
		highscore.WithLogger(logger),
	)
	defer svc.Close()

	handler := httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:      "/api/v1.0",
		AllowCORSOrigin: "*",
		Stats:           stats,
		Logger:          logger,
	})

	slog.Info("starting demo server on :8080", "api", "/api/v1.0/highscores", "events", "/api/v1.0/ws")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
