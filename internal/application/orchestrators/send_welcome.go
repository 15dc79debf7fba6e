package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/domain/member"
)

// SendWelcomeInput carries input for the welcome email.
type SendWelcomeInput struct {
	Member member.Member
}

// SendWelcomeDeps holds dependencies for SendWelcome.
type SendWelcomeDeps struct {
	Sender  email.Sender
	Club    string
	ReplyTo string
}

// ExecuteSendWelcome emails a newly created member their membership details.
// PRE: Member has been persisted
// POST: one email sent to Member.Email, or an error; the member record is never touched
func ExecuteSendWelcome(ctx context.Context, input SendWelcomeInput, deps SendWelcomeDeps) error {
	m := input.Member
	if m.Email == "" {
		return errors.New("member has no email address")
	}
	subject, html, text, err := email.RenderWelcome(email.WelcomeData{
		Club:       deps.Club,
		FirstName:  m.FirstName,
		Code:       m.Code,
		Department: m.DepartmentLabel(),
		StartDate:  member.NormalizeDate(m.StartDate),
		EndDate:    member.NormalizeDate(m.EndDate),
	})
	if err != nil {
		return err
	}
	res, err := deps.Sender.Send(ctx, email.SendRequest{
		To:      []string{m.Email},
		Subject: subject,
		HTML:    html,
		Text:    text,
		ReplyTo: deps.ReplyTo,
		Tags:    map[string]string{"kind": "welcome", "member_id": strconv.FormatInt(m.ID, 10)},
	})
	if err != nil {
		return err
	}
	slog.Info("email_event", "event", "welcome_sent", "member_id", m.ID, "message_id", res.MessageID)
	return nil
}

// WelcomeHook adapts ExecuteSendWelcome to ShellDeps.OnCreated. Failures
// are logged and never reach the operator's save.
func WelcomeHook(deps SendWelcomeDeps) func(ctx context.Context, m member.Member) {
	return func(ctx context.Context, m member.Member) {
		if deps.Sender == nil {
			return
		}
		if err := ExecuteSendWelcome(ctx, SendWelcomeInput{Member: m}, deps); err != nil {
			slog.Warn("email_event", "event", "welcome_failed", "member_id", m.ID, "error", err)
		}
	}
}
