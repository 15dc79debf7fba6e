package notice

import (
	"errors"
	"time"
)

// Severities
const (
	SeveritySuccess = "success"
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// DefaultLifetime is how long a notification stays visible before it dismisses itself.
const DefaultLifetime = 6 * time.Second

// Domain errors
var (
	ErrEmptyMessage    = errors.New("notification message cannot be empty")
	ErrInvalidSeverity = errors.New("notification severity must be one of: success, error, warning")
)

// Notification is a transient, auto-dismissing message shown after a console action.
// INVARIANT: ExpiresAt is after PostedAt.
type Notification struct {
	Message   string
	Severity  string
	PostedAt  time.Time
	ExpiresAt time.Time
}

// New builds a notification posted at now that expires after DefaultLifetime.
// PRE: message is non-empty, severity is valid
// POST: returns a validated notification or the first violation
func New(message, severity string, now time.Time) (Notification, error) {
	n := Notification{
		Message:   message,
		Severity:  severity,
		PostedAt:  now,
		ExpiresAt: now.Add(DefaultLifetime),
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Validate checks the notification's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (n Notification) Validate() error {
	if n.Message == "" {
		return ErrEmptyMessage
	}
	switch n.Severity {
	case SeveritySuccess, SeverityError, SeverityWarning:
	default:
		return ErrInvalidSeverity
	}
	if !n.ExpiresAt.After(n.PostedAt) {
		return errors.New("notification must expire after it is posted")
	}
	return nil
}

// Visible reports whether the notification should still be shown at now.
func (n Notification) Visible(now time.Time) bool {
	return n.Message != "" && now.Before(n.ExpiresAt)
}

// IsError reports whether the notification reports a failure.
func (n Notification) IsError() bool {
	return n.Severity == SeverityError
}
