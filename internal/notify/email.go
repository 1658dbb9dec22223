package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrNotConfigured = errors.New("notify: sender not configured")

const defaultFromName = "Appointment Reminders"

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func NewSendGridSender(cfg SendGridConfig, logger zerolog.Logger) (*SendGridSender, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, fmt.Errorf("%w: sendgrid needs an API key and a from address", ErrNotConfigured)
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logger), nil
}

func newSendGridSender(client sendgridAPI, cfg SendGridConfig, logger zerolog.Logger) *SendGridSender {
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// SendEmail sends a plain-text message and returns SendGrid's message id.
func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNotConfigured
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error().Int("status", resp.StatusCode).Str("body", resp.Body).Msg("sendgrid returned error status")
		return "", fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	id := ""
	if v := resp.Headers["X-Message-Id"]; len(v) > 0 {
		id = v[0]
	}
	s.logger.Debug().Str("message_id", id).Int("status", resp.StatusCode).Msg("email sent via sendgrid")
	return id, nil
}
