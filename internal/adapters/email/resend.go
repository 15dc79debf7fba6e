package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// resendAPI is the part of the Resend emails service the sender uses.
type resendAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender delivers through the Resend HTTP API.
type ResendSender struct {
	emails resendAPI
	from   string
}

// NewResendSender returns a sender using apiKey, defaulting the sender address to from.
// PRE: apiKey is a Resend API key
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{emails: resend.NewClient(apiKey).Emails, from: from}
}

func resendTags(tags map[string]string) []resend.Tag {
	var out []resend.Tag
	for _, k := range tagNames(tags) {
		out = append(out, resend.Tag{Name: k, Value: tags[k]})
	}
	return out
}

// Send hands one message to Resend.
// PRE: req has at least one recipient
// POST: returns the Resend message id, or an error wrapping the API failure
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	params := &resend.SendEmailRequest{
		From:    fromOr(req.From, s.from),
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
		ReplyTo: req.ReplyTo,
		Tags:    resendTags(req.Tags),
	}
	sent, err := s.emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("email_event", "event", "send_failed", "provider", ProviderResend, "to", req.To, "error", err)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	slog.Info("email_event", "event", "sent", "provider", ProviderResend, "message_id", sent.Id, "to", req.To)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}
