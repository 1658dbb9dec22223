package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StubSender logs instead of sending. It covers every channel and is the
// default when no provider is configured.
type StubSender struct {
	logger zerolog.Logger
}

func NewStubSender(logger zerolog.Logger) *StubSender {
	return &StubSender{logger: logger}
}

func (s *StubSender) SendEmail(_ context.Context, to, subject, _ string) (string, error) {
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("stub sender: would send email")
	return "stub-" + uuid.NewString(), nil
}

func (s *StubSender) SendSMS(_ context.Context, to, text string) (string, error) {
	s.logger.Info().Str("to", to).Int("length", len(text)).Msg("stub sender: would send sms")
	return "stub-" + uuid.NewString(), nil
}

func (s *StubSender) SendPush(_ context.Context, userID, title, _ string, _ map[string]string) (string, error) {
	s.logger.Info().Str("user_id", userID).Str("title", title).Msg("stub sender: would send push")
	return "stub-" + uuid.NewString(), nil
}
