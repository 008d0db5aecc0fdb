package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNetwork marks failures to reach the backend at all (dial, timeout, reset).
	ErrNetwork = errors.New("backend unreachable")

	// ErrUnexpectedShape marks a response whose body does not match the envelope contract.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// Envelope is the one response shape every backend endpoint uses:
// {"success": bool, "data": ..., "error": "...", "message": "..."}.
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// APIError is a rejection reported by the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("request failed: %d - %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Reason returns the most specific human-readable message the envelope carries.
func (e *Envelope) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	// Some endpoints put the failure text in data.
	var s string
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &s) == nil {
		return s
	}
	return ""
}

// DecodeEnvelope reads a response body. A non-2xx status or success=false
// becomes an *APIError; a body that is not an envelope wraps ErrUnexpectedShape.
// 204 No Content is a successful envelope without data.
func DecodeEnvelope(resp *http.Response) (*Envelope, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusNoContent {
		ok := true
		return &Envelope{Success: &ok}, nil
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if decodeErr == nil {
			msg = env.Reason()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, decodeErr)
	}
	if env.Success == nil {
		return nil, fmt.Errorf("%w: missing success flag", ErrUnexpectedShape)
	}
	if !*env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Reason()}
	}
	return &env, nil
}

// DecodeData unmarshals the envelope's data into out. A nil out skips decoding.
func (e *Envelope) DecodeData(out interface{}) error {
	if out == nil {
		return nil
	}
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return fmt.Errorf("%w: empty data", ErrUnexpectedShape)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return nil
}

// DecodeList requires data to be a JSON array. An object or scalar is an
// error rather than an empty list.
func DecodeList[T any](e *Envelope) ([]T, error) {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: data is not a list", ErrUnexpectedShape)
	}
	items := make([]T, 0)
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return items, nil
}
