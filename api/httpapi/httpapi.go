package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	wsadapter "highscore/adapters/websocket"
	"highscore/analytics"
	"highscore/core"
	"highscore/engine"
	"highscore/realtime"
)

// maxBodyBytes caps a submission body.
const maxBodyBytes = 1 << 20

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api/v1.0").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup is how often idle client buckets are discarded.
	RateLimitCleanup time.Duration
	// WebSocketPath is where the event stream is mounted when a hub is given (default "/ws").
	WebSocketPath string
	WebSocket     wsadapter.Options
	// Stats, if set, is served at {prefix}/stats.
	Stats  *analytics.Stats
	Logger *slog.Logger
}

// NewMux builds an http.Handler exposing the highscore REST API and WebSocket stream.
// Routes:
//   - GET  {prefix}/highscores
//   - POST {prefix}/highscores
//   - GET  {prefix}/highscores/name/{name}
//   - GET  {prefix}/highscores/difficulty/{difficulty}
//   - GET  {prefix}/highscores/name/{name}/difficulty/{difficulty}
//   - GET  {prefix}/healthz
//   - GET  {prefix}/stats
//   - WS   {prefix}/ws
func NewMux(svc *engine.ScoreService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	h := &handlers{svc: svc, logger: opts.Logger}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), h.health)

	if opts.Stats != nil {
		stats := opts.Stats
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/stats"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			writeJSON(w, http.StatusOK, stats.Snapshot())
		})
	}

	if hub != nil {
		path := opts.WebSocketPath
		if path == "" {
			path = "/ws"
		}
		if opts.WebSocket.Logger == nil {
			opts.WebSocket.Logger = opts.Logger
		}
		mux.Handle(withPrefix(opts.PathPrefix, path), wsadapter.Handler(hub, opts.WebSocket))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/highscores"), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, nil)
		case http.MethodPost:
			h.submit(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/highscores/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, withPrefix(opts.PathPrefix, "/highscores"))
		q, ok := parseQuery(split(path, '/'))
		if !ok {
			notFound(w)
			return
		}
		h.list(w, r, &q)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup))
	}
	return withRequestLog(handler, opts.Logger)
}

// listQuery is a parsed filter path. Nil fields are unfiltered.
type listQuery struct {
	name       *string
	difficulty *int64
}

// parseQuery accepts name/{name}, difficulty/{d} and name/{name}/difficulty/{d}.
func parseQuery(parts []string) (listQuery, bool) {
	var q listQuery
	switch {
	case len(parts) == 2 && parts[0] == "name":
		q.name = &parts[1]
	case len(parts) == 2 && parts[0] == "difficulty":
		d, ok := parseDifficulty(parts[1])
		if !ok {
			return q, false
		}
		q.difficulty = &d
	case len(parts) == 4 && parts[0] == "name" && parts[2] == "difficulty":
		d, ok := parseDifficulty(parts[3])
		if !ok {
			return q, false
		}
		q.name, q.difficulty = &parts[1], &d
	default:
		return q, false
	}
	return q, true
}

// parseDifficulty accepts unsigned decimal digits only, so "-1" and "+1"
// do not match the route at all.
func parseDifficulty(s string) (int64, bool) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}

type handlers struct {
	svc    *engine.ScoreService
	logger *slog.Logger
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request, q *listQuery) {
	ctx := r.Context()
	var (
		records []core.Record
		err     error
	)
	switch {
	case q == nil:
		records, err = h.svc.ListAll(ctx)
	case q.name != nil && q.difficulty != nil:
		records, err = h.svc.ListByNameAndDifficulty(ctx, *q.name, *q.difficulty)
	case q.name != nil:
		records, err = h.svc.ListByName(ctx, *q.name)
	default:
		records, err = h.svc.ListByDifficulty(ctx, *q.difficulty)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// submit answers 201 with the stored record, 304 with no body when the score
// does not improve, and 400 for a body that breaks a submission rule.
func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	raw, ok := decodeBody(w, r)
	if !ok {
		h.writeServiceError(w, r, core.NewValidationError("", core.MsgNoValidJSON))
		return
	}
	res, err := h.svc.Submit(r.Context(), raw)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !res.Accepted {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusCreated, res.Record)
}

// decodeBody reads a JSON object. Numbers stay json.Number so integer parsing
// is exact.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	return raw, true
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	// A lookup of a key that never exists exercises the storage path without touching data.
	_, err := h.svc.ListByNameAndDifficulty(r.Context(), "healthcheck_probe", core.DifficultyRange.Low.Value)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSON(w, code, status)
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		var details any
		if ve.Field != "" {
			details = map[string]string{"field": ve.Field}
		}
		writeError(w, http.StatusBadRequest, "parse_error", ve.Message, details)
	case core.IsStorage(err):
		h.logger.ErrorContext(r.Context(), "storage failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable", nil)
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

// Helpers

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	for _, r := range strings.TrimLeft(p, string(sep)) {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, apiError{Code: code, Message: msg, Details: details})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
}
