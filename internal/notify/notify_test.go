package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/hackgods/appointment-reminders/internal/config"
)

type fakeSendGrid struct {
	got  *mail.SGMailV3
	resp *rest.Response
	err  error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	return f.resp, f.err
}

func TestNewSendGridSender_RequiresKey(t *testing.T) {
	_, err := NewSendGridSender(SendGridConfig{FromEmail: "a@b.c"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilSender *SendGridSender
	_, err = nilSender.SendEmail(context.Background(), "x@y.z", "s", "b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendGridSender_SendEmail(t *testing.T) {
	fake := &fakeSendGrid{resp: &rest.Response{
		StatusCode: 202,
		Headers:    map[string][]string{"X-Message-Id": {"sg-123"}},
	}}
	s := newSendGridSender(fake, SendGridConfig{FromEmail: "clinic@example.com"}, zerolog.Nop())

	id, err := s.SendEmail(context.Background(), "ada@example.com", "Appointment confirmed", "See you soon")
	require.NoError(t, err)
	assert.Equal(t, "sg-123", id)

	require.NotNil(t, fake.got)
	assert.Equal(t, "Appointment confirmed", fake.got.Subject)
	assert.Equal(t, "clinic@example.com", fake.got.From.Address)
	assert.Equal(t, defaultFromName, fake.got.From.Name)
	require.Len(t, fake.got.Personalizations, 1)
	assert.Equal(t, "ada@example.com", fake.got.Personalizations[0].To[0].Address)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	fake := &fakeSendGrid{resp: &rest.Response{StatusCode: 401, Body: `{"errors":[]}`}}
	s := newSendGridSender(fake, SendGridConfig{FromEmail: "clinic@example.com"}, zerolog.Nop())

	_, err := s.SendEmail(context.Background(), "ada@example.com", "s", "b")
	assert.ErrorContains(t, err, "status 401")

	fake.err = errors.New("dial tcp: timeout")
	_, err = s.SendEmail(context.Background(), "ada@example.com", "s", "b")
	assert.ErrorContains(t, err, "dial tcp")
}

type fakeSES struct {
	got *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_SendEmail(t *testing.T) {
	fake := &fakeSES{}
	s, err := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com", FromName: "Clinic"}, zerolog.Nop())
	require.NoError(t, err)

	id, err := s.SendEmail(context.Background(), "ada@example.com", "Reminder", "Tomorrow at 10")
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)
	assert.Equal(t, "Clinic <clinic@example.com>", aws.ToString(fake.got.FromEmailAddress))
	assert.Equal(t, []string{"ada@example.com"}, fake.got.Destination.ToAddresses)
	assert.Equal(t, "Tomorrow at 10", aws.ToString(fake.got.Content.Simple.Body.Text.Data))

	_, err = NewSESSender(nil, SESConfig{FromEmail: "x@y.z"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func newTestTwilio(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550000"}, zerolog.Nop())
	require.NoError(t, err)
	s.baseURL = srv.URL
	s.httpClient = srv.Client()
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s
}

func TestTwilioSender_SendSMS(t *testing.T) {
	var form url.Values
	s := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	})

	sid, err := s.SendSMS(context.Background(), "+15550100", "Your appointment is tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "SM42", sid)
	assert.Equal(t, "+15550100", form.Get("To"))
	assert.Equal(t, "+15550000", form.Get("From"))
	assert.Equal(t, "Your appointment is tomorrow", form.Get("Body"))
}

func TestTwilioSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"sid":"SM43"}`))
	})

	sid, err := s.SendSMS(context.Background(), "+15550100", "hi")
	require.NoError(t, err)
	assert.Equal(t, "SM43", sid)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTwilioSender_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	})

	_, err := s.SendSMS(context.Background(), "+1", "hi")
	assert.ErrorContains(t, err, "status 400 code 21211: Invalid 'To' Phone Number")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewTwilioSender_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioSender(TwilioConfig{AccountSID: "AC1"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFCMSender_SendPush(t *testing.T) {
	var path string
	var got struct {
		Message struct {
			Topic        string            `json:"topic"`
			Data         map[string]string `json:"data"`
			Notification struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"notification"`
		} `json:"message"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"projects/clinic/messages/0:1"}`))
	}))
	defer srv.Close()

	s, err := NewFCMSender(context.Background(), FCMConfig{ProjectID: "clinic"}, zerolog.Nop(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	name, err := s.SendPush(context.Background(), "u-1", "Appointment in 2 hours", "Dr. Hopper at 10:00 AM",
		map[string]string{"kind": "reminder_2h"})
	require.NoError(t, err)

	assert.Equal(t, "projects/clinic/messages/0:1", name)
	assert.Equal(t, "/v1/projects/clinic/messages:send", path)
	assert.Equal(t, "user_u-1", got.Message.Topic)
	assert.Equal(t, "Appointment in 2 hours", got.Message.Notification.Title)
	assert.Equal(t, "reminder_2h", got.Message.Data["kind"])
}

func TestStubSender(t *testing.T) {
	s := NewStubSender(zerolog.Nop())
	id, err := s.SendEmail(context.Background(), "a@b.c", "s", "b")
	require.NoError(t, err)
	assert.Contains(t, id, "stub-")

	_, err = s.SendSMS(context.Background(), "+1", "x")
	require.NoError(t, err)
	_, err = s.SendPush(context.Background(), "u", "t", "b", nil)
	require.NoError(t, err)
}

func TestBuildTransports_DefaultsToStub(t *testing.T) {
	tr, err := BuildTransports(context.Background(), config.Config{EmailProvider: "stub"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &StubSender{}, tr.Email)
	assert.IsType(t, &StubSender{}, tr.SMS)
	assert.IsType(t, &StubSender{}, tr.Push)

	tr, err = BuildTransports(context.Background(), config.Config{
		EmailProvider:    "sendgrid",
		SendGridAPIKey:   "SG.key",
		EmailFromAddress: "clinic@example.com",
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "tok",
		TwilioFromNumber: "+15550000",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, tr.Email)
	assert.IsType(t, &TwilioSender{}, tr.SMS)

	_, err = BuildTransports(context.Background(), config.Config{EmailProvider: "sendgrid"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMSSpanAttributes_OmitRecipient(t *testing.T) {
	attrs := smsSpanAttributes("Reminder: café at 10:00")

	require.Len(t, attrs, 1)
	assert.Equal(t, "sms.body_length", string(attrs[0].Key))
	assert.EqualValues(t, 23, attrs[0].Value.AsInt64())
	for _, a := range attrs {
		assert.NotContains(t, string(a.Key), "to")
	}
}
