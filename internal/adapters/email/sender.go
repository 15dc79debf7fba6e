package email

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string
	From    string // empty uses the sender's default
	Subject string
	HTML    string
	Text    string // plain-text alternative, optional
	ReplyTo string
	// Tags label the message at the provider, e.g. kind=welcome.
	Tags map[string]string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// Providers accepted by NewSender.
const (
	ProviderResend = "resend"
	ProviderSES    = "ses"
	ProviderNoop   = "noop"
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	From      string // "Club <recepcion@club.pe>"
	ResendKey string
	SES       SESConfig
}

// NewSender builds the configured sender. Unknown providers fall back to noop.
// PRE: credentials for the selected provider are set
// POST: returns a ready sender, or an error when the selected provider is missing credentials
func NewSender(cfg Config) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderResend:
		if cfg.ResendKey == "" {
			return nil, fmt.Errorf("email provider %q needs an API key", cfg.Provider)
		}
		return NewResendSender(cfg.ResendKey, cfg.From), nil
	case ProviderSES:
		return NewSESSender(cfg.SES, cfg.From)
	case ProviderNoop, "":
		return NewNoopSender(), nil
	default:
		slog.Warn("email_provider_unknown", "provider", cfg.Provider)
		return NewNoopSender(), nil
	}
}

func fromOr(from, fallback string) string {
	if from == "" {
		return fallback
	}
	return from
}

// tagNames returns the tag names in a stable order.
func tagNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
