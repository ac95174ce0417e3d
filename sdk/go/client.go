package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"highscore/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the highscore HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api/v1.0).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// ListAll returns every record, grouped by difficulty with the best score first.
func (c *Client) ListAll(ctx context.Context) ([]core.Record, error) {
	return c.list(ctx, "/highscores")
}

// ListByName returns all records of one player.
func (c *Client) ListByName(ctx context.Context, name string) ([]core.Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return c.list(ctx, "/highscores/name/"+url.PathEscape(name))
}

// ListByDifficulty returns one difficulty's board.
func (c *Client) ListByDifficulty(ctx context.Context, difficulty int64) ([]core.Record, error) {
	return c.list(ctx, "/highscores/difficulty/"+strconv.FormatInt(difficulty, 10))
}

// ListByNameAndDifficulty returns zero or one record.
func (c *Client) ListByNameAndDifficulty(ctx context.Context, name string, difficulty int64) ([]core.Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return c.list(ctx, fmt.Sprintf("/highscores/name/%s/difficulty/%d", url.PathEscape(name), difficulty))
}

func (c *Client) list(ctx context.Context, path string) ([]core.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []core.Record
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit posts a score. It returns the stored record when the score improved,
// ErrNotImproved when it did not, and an *APIError for rejected input.
func (c *Client) Submit(ctx context.Context, name string, difficulty, score int64) (core.Record, error) {
	body, err := json.Marshal(core.Record{Name: name, Difficulty: difficulty, Score: score})
	if err != nil {
		return core.Record{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/highscores", body)
	if err != nil {
		return core.Record{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return core.Record{}, ErrNotImproved
	case http.StatusCreated, http.StatusOK:
		var rec core.Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return core.Record{}, err
		}
		return rec, nil
	default:
		return core.Record{}, decodeError(resp)
	}
}

// Health probes /healthz and returns status + storage check. An unhealthy
// server still yields its status alongside the error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return hs, &APIError{Status: resp.StatusCode, Message: hs.Status}
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A difficulty > 0 restricts the stream to that board.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, difficulty int64) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if difficulty > 0 {
		target += "?difficulty=" + strconv.FormatInt(difficulty, 10)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)
	return c.httpClient.Do(req)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
