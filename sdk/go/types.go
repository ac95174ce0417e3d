package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"highscore/core"
)

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.Status, e.Message)
}

// IsValidation reports whether err is a rejected submission body.
func IsValidation(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusBadRequest
}

// ErrNotImproved is returned by Submit when the stored score was not beaten.
var ErrNotImproved = core.ErrNotImproved

// ErrEmptyName is returned when a name path segment is empty.
var ErrEmptyName = errors.New("name is required")

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func decodeError(resp *http.Response) error {
	ae := &APIError{Status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(ae)
	return ae
}
