package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"highscore/config"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestProvideHubDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NotNil(t, provideHub(cfg))
	cfg.Realtime.Enabled = false
	assert.Nil(t, provideHub(cfg))
}

func TestProvidersAssembleHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Adapter = config.AdapterMemory
	cfg.Storage.Memory.SeedSampleData = true
	cfg.Webhooks.Endpoints = []string{"http://127.0.0.1:1/hook"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage, cleanup, err := provideStorage(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	hub := provideHub(cfg)
	stats := provideStats()
	svc, closeSvc := provideService(cfg, logger, storage, hub, stats)
	defer closeSvc()
	handler := provideHandler(cfg, logger, svc, hub, stats)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1.0/highscores/difficulty/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"alice","difficulty":3,"score":25},{"name":"bob","difficulty":3,"score":15},{"name":"john","difficulty":3,"score":10}]`, rec.Body.String())

	srv := provideServer(cfg, handler)
	assert.Equal(t, cfg.Server.Address, srv.Addr)
}
