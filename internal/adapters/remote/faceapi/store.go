package faceapi

import (
	"context"

	"gymdesk/internal/domain/enrollment"
)

// Store reaches the remote face enrollment service.
type Store interface {
	AddFaces(ctx context.Context, subject string, images []enrollment.Image) (Result, error)
	Health(ctx context.Context) (Health, error)
}

// Result is the service's summary of an accepted enrollment call.
type Result struct {
	Message    string `json:"message"`
	Subject    string `json:"subject"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// Health is the body of GET /health.
type Health struct {
	Status     string `json:"status"`
	CompreFace string `json:"compreface"`
}

// Healthy reports whether the service described itself as healthy.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}
