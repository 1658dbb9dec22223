package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

// FCMSender delivers push notifications through Firebase Cloud Messaging.
// Each patient's devices subscribe to the topic "user_{userID}".
type FCMSender struct {
	svc       *fcm.Service
	projectID string
	logger    zerolog.Logger
}

type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
}

func NewFCMSender(ctx context.Context, cfg FCMConfig, logger zerolog.Logger, opts ...option.ClientOption) (*FCMSender, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: fcm needs a project id", ErrNotConfigured)
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: create fcm service: %w", err)
	}
	return &FCMSender{svc: svc, projectID: cfg.ProjectID, logger: logger}, nil
}

func UserTopic(userID string) string {
	return "user_" + userID
}

// SendPush returns the FCM message name.
func (s *FCMSender) SendPush(ctx context.Context, userID, title, body string, data map[string]string) (string, error) {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Topic: UserTopic(userID),
			Notification: &fcm.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		},
	}

	msg, err := s.svc.Projects.Messages.Send("projects/"+s.projectID, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("notify: fcm send: %w", err)
	}

	s.logger.Debug().Str("message", msg.Name).Msg("push sent via fcm")
	return msg.Name, nil
}
