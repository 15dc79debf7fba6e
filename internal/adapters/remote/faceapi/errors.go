package faceapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FileError is a per-file rejection reported by the service.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// APIError is a non-success response from the face service.
type APIError struct {
	Status  int
	Message string
	Files   []FileError
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("face service returned status %d", e.Status)
	}
	if len(e.Files) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		parts = append(parts, f.File+": "+f.Error)
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// decodeError reads {"detail": "..."} or {"detail": {"message", "errors"}}.
// PRE: status is not 2xx
// POST: never returns nil
func decodeError(status int, body []byte) error {
	var eb struct {
		Detail json.RawMessage `json:"detail"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(eb.Detail, &msg); err == nil {
		apiErr.Message = msg
		return apiErr
	}

	var obj struct {
		Message string      `json:"message"`
		Errors  []FileError `json:"errors"`
	}
	if err := json.Unmarshal(eb.Detail, &obj); err == nil {
		apiErr.Message = obj.Message
		apiErr.Files = obj.Errors
	}
	return apiErr
}
