package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is the single normalized error shape every failed API call
// produces. Transport failures, authorization failures, validation
// failures and missing targets all surface through it; callers that need
// to branch (there are few) inspect StatusCode.
type Error struct {
	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int
	// Detail is the server's human-readable message when one was parsed.
	Detail string
	// Fields carries per-field validation messages from 4xx payloads.
	Fields map[string][]string
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode > 0:
		return fmt.Sprintf("api: %s (status %d)", e.Detail, e.StatusCode)
	case e.Detail != "":
		return "api: " + e.Detail
	case len(e.Fields) > 0:
		parts := make([]string, 0, len(e.Fields))
		for field, msgs := range e.Fields {
			parts = append(parts, field+": "+strings.Join(msgs, "; "))
		}
		return fmt.Sprintf("api: validation failed (%s, status %d)", strings.Join(parts, ", "), e.StatusCode)
	default:
		return fmt.Sprintf("api: request failed with status %d", e.StatusCode)
	}
}

// IsUnauthorized reports whether err is an authorization failure, meaning
// the token is missing, expired or revoked and the user must log in again.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a missing-target failure.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// parseError builds an *Error from a non-2xx response body. Django REST
// Framework reports either {"detail": "..."} or a field->messages map;
// anything else is kept as an opaque status-only error.
func parseError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}
	if len(body) == 0 {
		return apiErr
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
		return apiErr
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		apiErr.Fields = make(map[string][]string, len(fields))
		for field, raw := range fields {
			var msgs []string
			if err := json.Unmarshal(raw, &msgs); err == nil {
				apiErr.Fields[field] = msgs
				continue
			}
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil {
				apiErr.Fields[field] = []string{msg}
			}
		}
		if len(apiErr.Fields) > 0 {
			return apiErr
		}
		apiErr.Fields = nil
	}

	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
