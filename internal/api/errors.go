package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNetwork            = errors.New("api: request failed")
	ErrDecode             = errors.New("api: malformed response")
	ErrNoToken            = errors.New("api: no authentication token received")
	ErrInvalidCredentials = errors.New("api: invalid username or password")
)

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	Code   int
	Detail string
	URL    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("api: %s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// StatusCode exposes the HTTP status to callers that only know the interface.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// newStatusError reads the FastAPI style {"detail": ...} body when present.
// Validation errors carry a list of objects in detail; those are joined by msg.
func newStatusError(resp *http.Response, body []byte) *StatusError {
	se := &StatusError{Code: resp.StatusCode, URL: resp.Request.URL.Path}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return se
	}
	var s string
	if json.Unmarshal(payload.Detail, &s) == nil {
		se.Detail = s
		return se
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		se.Detail = strings.Join(msgs, "; ")
	}
	return se
}
