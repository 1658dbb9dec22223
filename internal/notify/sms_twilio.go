package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var twilioTracer = otel.Tracer("appointment-reminders/internal/notify/twilio")

const twilioBaseURL = "https://api.twilio.com"

// TwilioSender posts SMS through Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	backoff    func(attempt int) time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func NewTwilioSender(cfg TwilioConfig, logger zerolog.Logger) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("%w: twilio needs account sid, auth token and from number", ErrNotConfigured)
	}
	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}, nil
}

// SendSMS sends one message and returns the Twilio message SID. Network
// errors, 429 and 5xx are retried up to three attempts.
func (s *TwilioSender) SendSMS(ctx context.Context, to, text string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("notify: sms recipient required")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("notify: sms body required")
	}

	ctx, span := twilioTracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(smsSpanAttributes(text)...)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		sid, retry, err := s.post(ctx, endpoint, payload)
		if err == nil {
			s.logger.Debug().Str("sid", sid).Msg("sms sent via twilio")
			return sid, nil
		}
		lastErr = err
		if !retry || attempt == 3 {
			break
		}

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return "", ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}

	span.RecordError(lastErr)
	return "", lastErr
}

func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (sid string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", false, err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("notify: twilio request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			SID string `json:"sid"`
		}
		_ = json.Unmarshal(body, &parsed)
		return parsed.SID, false, nil
	}

	err = fmt.Errorf("notify: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return "", retry, err
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, string(body))
}

// smsSpanAttributes never includes the recipient number.
func smsSpanAttributes(text string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("sms.body_length", len([]rune(text))),
	}
}
