package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/internal/reminder"
)

// BuildTransports picks a sender per channel from configuration. Channels
// without provider credentials fall back to the logging stub.
func BuildTransports(ctx context.Context, cfg config.Config, logger zerolog.Logger) (reminder.Transports, error) {
	stub := NewStubSender(logger.With().Str("transport", "stub").Logger())
	t := reminder.Transports{Email: stub, SMS: stub, Push: stub}

	emailLog := logger.With().Str("transport", cfg.EmailProvider).Logger()
	switch cfg.EmailProvider {
	case "sendgrid":
		s, err := NewSendGridSender(SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, emailLog)
		if err != nil {
			return reminder.Transports{}, err
		}
		t.Email = s
	case "ses":
		client, err := NewSESClient(ctx, cfg.AWSRegion)
		if err != nil {
			return reminder.Transports{}, err
		}
		s, err := NewSESSender(client, SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, emailLog)
		if err != nil {
			return reminder.Transports{}, err
		}
		t.Email = s
	case "stub", "":
	default:
		return reminder.Transports{}, fmt.Errorf("%w: unknown email provider %q", ErrNotConfigured, cfg.EmailProvider)
	}

	if cfg.TwilioAccountSID != "" {
		s, err := NewTwilioSender(TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		}, logger.With().Str("transport", "twilio").Logger())
		if err != nil {
			return reminder.Transports{}, err
		}
		t.SMS = s
	} else {
		logger.Warn().Msg("twilio not configured, sms reminders are logged only")
	}

	if cfg.FCMProjectID != "" {
		s, err := NewFCMSender(ctx, FCMConfig{
			ProjectID:       cfg.FCMProjectID,
			CredentialsFile: cfg.FCMCredentialsFile,
		}, logger.With().Str("transport", "fcm").Logger())
		if err != nil {
			return reminder.Transports{}, err
		}
		t.Push = s
	} else {
		logger.Warn().Msg("fcm not configured, push reminders are logged only")
	}

	return t, nil
}
