package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// sesAPI is the part of the SES client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender creates an SES sender with static credentials.
// PRE: cfg.Region, cfg.AccessKeyID and cfg.SecretAccessKey are set
// POST: Returns a ready-to-use sender
func NewSESSender(cfg SESConfig, from string) (*SESSender, error) {
	if cfg.Region == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("ses sender needs a region and static credentials")
	}
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}
	return &SESSender{client: ses.NewFromConfig(awsCfg), from: from}, nil
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

// Send sends a single email via SES.
// PRE: req has at least one recipient and a subject
// POST: Email accepted by SES; returns its message ID
func (s *SESSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	input := &ses.SendEmailInput{
		Source:      aws.String(fromOr(req.From, s.from)),
		Destination: &types.Destination{ToAddresses: req.To},
		Message: &types.Message{
			Subject: utf8Content(req.Subject),
			Body:    &types.Body{},
		},
	}
	if req.HTML != "" {
		input.Message.Body.Html = utf8Content(req.HTML)
	}
	if req.Text != "" {
		input.Message.Body.Text = utf8Content(req.Text)
	}
	if req.ReplyTo != "" {
		input.ReplyToAddresses = []string{req.ReplyTo}
	}
	for _, k := range tagNames(req.Tags) {
		input.Tags = append(input.Tags, types.MessageTag{Name: aws.String(k), Value: aws.String(req.Tags[k])})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		slog.Error("email_event", "event", "send_failed", "provider", ProviderSES, "to", req.To, "error", err)
		return SendResult{}, fmt.Errorf("ses send failed: %w", err)
	}
	id := aws.ToString(out.MessageId)
	slog.Info("email_event", "event", "sent", "provider", ProviderSES, "message_id", id, "to", req.To)
	return SendResult{MessageID: id, SentAt: time.Now()}, nil
}
