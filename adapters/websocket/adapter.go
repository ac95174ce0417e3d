package websocket

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"highscore/core"
	"highscore/realtime"
)

// Options tunes the event stream.
type Options struct {
	// Buffer is the per-connection event buffer (default 256).
	Buffer int
	// WriteTimeout bounds each frame write (default 5s).
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Handler returns an http.Handler that upgrades to WebSocket and streams score
// events from the hub. An optional ?difficulty=N query keeps only that board.
func Handler(hub *realtime.Hub, opts Options) http.Handler {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var filter *int64
		if raw := r.URL.Query().Get("difficulty"); raw != "" {
			d, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "difficulty must be an integer", http.StatusBadRequest)
				return
			}
			filter = &d
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(opts.Buffer)
		defer hub.Unsubscribe(id)
		opts.Logger.Debug("websocket subscriber connected", "id", id, "remote", r.RemoteAddr)

		// The client never sends data; reading detects when it goes away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				opts.Logger.Debug("websocket subscriber disconnected", "id", id)
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !matches(ev, filter) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			}
		}
	})
}

func matches(ev core.Event, difficulty *int64) bool {
	return difficulty == nil || ev.Difficulty == *difficulty
}
