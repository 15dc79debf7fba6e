package memberapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the store has no member with the requested id.
var ErrNotFound = errors.New("member not found")

// Issue is one (field path, message) pair from a 422 response.
type Issue struct {
	Loc []string
	Msg string
}

// ValidationError is the store rejecting a payload field by field.
type ValidationError struct {
	Issues []Issue
}

// Error flattens the issues as "loc.path - msg, ...".
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, strings.Join(is.Loc, ".")+" - "+is.Msg)
	}
	return strings.Join(parts, ", ")
}

// APIError is any other non-success response. Message is the store's
// detail text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("member service returned status %d", e.Status)
	}
	return e.Message
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type rawIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// decodeError turns an error response body into a *ValidationError or *APIError.
// PRE: status is not 2xx
// POST: never returns nil
func decodeError(status int, body []byte, fallback string) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return &APIError{Status: status, Message: fallback}
	}

	var raw []rawIssue
	if err := json.Unmarshal(eb.Detail, &raw); err == nil {
		verr := &ValidationError{Issues: make([]Issue, 0, len(raw))}
		for _, r := range raw {
			loc := make([]string, 0, len(r.Loc))
			for _, l := range r.Loc {
				loc = append(loc, fmt.Sprint(l))
			}
			verr.Issues = append(verr.Issues, Issue{Loc: loc, Msg: r.Msg})
		}
		return verr
	}

	var msg string
	if err := json.Unmarshal(eb.Detail, &msg); err == nil && msg != "" {
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Message: fallback}
}
