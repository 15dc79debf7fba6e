package camera

import (
	"context"
	"errors"
)

// Errors reported by camera sessions.
var (
	ErrUnavailable = errors.New("camera unavailable")
	ErrNotReady    = errors.New("camera has not produced a frame yet")
	ErrClosed      = errors.New("camera session is closed")
)

// Opener acquires a capture device.
type Opener interface {
	// Open starts a session on the front-facing device.
	// POST: on error no device is held; errors wrap ErrUnavailable
	Open(ctx context.Context) (Session, error)
}

// Session is one held capture device. Exactly one goroutine may own it.
type Session interface {
	// Ready reports whether at least one frame has arrived.
	Ready() bool
	// Frame returns the most recent frame as JPEG bytes.
	// POST: ErrNotReady before the first frame, ErrClosed after Close
	Frame() ([]byte, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}
