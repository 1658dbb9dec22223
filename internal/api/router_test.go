package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/lifecycle"
	"github.com/hackgods/appointment-reminders/internal/reminder"
)

type fakeTrigger struct {
	created  []appointment.Appointment
	previous []appointment.Appointment
	updated  []appointment.Appointment
}

func (f *fakeTrigger) OnAppointmentCreated(_ context.Context, cur appointment.Appointment) lifecycle.Outcome {
	f.created = append(f.created, cur)
	return lifecycle.OutcomeScheduled
}

func (f *fakeTrigger) OnAppointmentUpdated(_ context.Context, prev, cur appointment.Appointment) lifecycle.Outcome {
	f.previous = append(f.previous, prev)
	f.updated = append(f.updated, cur)
	return lifecycle.OutcomeRescheduled
}

type fakeLister struct {
	entries []reminder.ScheduledReminder
	err     error
}

func (f fakeLister) ListAppointmentReminders(context.Context, uuid.UUID) ([]reminder.ScheduledReminder, error) {
	return f.entries, f.err
}

func newTestRouter(trigger *fakeTrigger, lister ReminderLister, secret string) http.Handler {
	ok := func(context.Context) error { return nil }
	return NewRouter(RouterConfig{
		Trigger:    trigger,
		Reminders:  lister,
		Health:     NewHealthHandler(ok, ok, "test", "v0"),
		Gatherer:   prometheus.NewRegistry(),
		Logger:     zerolog.Nop(),
		HookSecret: secret,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreatedHook(t *testing.T) {
	trigger := &fakeTrigger{}
	h := newTestRouter(trigger, fakeLister{}, "")
	id := uuid.New()

	body := `{"appointment":{"id":"` + id.String() + `","starts_at":"2026-03-10T10:00:00Z","duration_minutes":30,"status":"scheduled","updated_at":"2026-03-09T09:00:00Z"}}`
	rec := do(t, h, http.MethodPost, "/hooks/appointments/created", body, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp HookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.AppointmentID)
	assert.Equal(t, "scheduled", resp.Outcome)

	require.Len(t, trigger.created, 1)
	assert.Equal(t, appointment.StatusScheduled, trigger.created[0].Status)
	assert.Equal(t, 30*time.Minute, trigger.created[0].Duration)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUpdatedHook(t *testing.T) {
	trigger := &fakeTrigger{}
	h := newTestRouter(trigger, fakeLister{}, "")
	id := uuid.New().String()

	body := `{
		"previous":{"id":"` + id + `","starts_at":"2026-03-10T10:00:00Z","status":"confirmed"},
		"current":{"id":"` + id + `","starts_at":"2026-03-10T14:00:00Z","status":"confirmed"}
	}`
	rec := do(t, h, http.MethodPost, "/hooks/appointments/updated", body, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, trigger.updated, 1)
	assert.Equal(t, 10, trigger.previous[0].StartsAt.Hour())
	assert.Equal(t, 14, trigger.updated[0].StartsAt.Hour())
}

func TestHooks_RejectBadInput(t *testing.T) {
	h := newTestRouter(&fakeTrigger{}, fakeLister{}, "")
	a, b := uuid.New().String(), uuid.New().String()

	cases := []struct {
		name, path, body, code string
	}{
		{"not json", "/hooks/appointments/created", `{`, "invalid_request_body"},
		{"missing id", "/hooks/appointments/created", `{"appointment":{"starts_at":"2026-03-10T10:00:00Z","status":"scheduled"}}`, "invalid_appointment"},
		{"bad status", "/hooks/appointments/created", `{"appointment":{"id":"` + a + `","starts_at":"2026-03-10T10:00:00Z","status":"pending"}}`, "invalid_appointment"},
		{"mismatch", "/hooks/appointments/updated",
			`{"previous":{"id":"` + a + `","starts_at":"2026-03-10T10:00:00Z","status":"scheduled"},"current":{"id":"` + b + `","starts_at":"2026-03-10T10:00:00Z","status":"scheduled"}}`,
			"appointment_mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.path, tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestHooks_SecretRequired(t *testing.T) {
	trigger := &fakeTrigger{}
	h := newTestRouter(trigger, fakeLister{}, "s3cret")
	body := `{"appointment":{"id":"` + uuid.New().String() + `","starts_at":"2026-03-10T10:00:00Z","status":"scheduled"}}`

	rec := do(t, h, http.MethodPost, "/hooks/appointments/created", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, trigger.created)

	rec = do(t, h, http.MethodPost, "/hooks/appointments/created", body, map[string]string{"X-Hook-Secret": "s3cret"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestListReminders(t *testing.T) {
	id := uuid.New()
	sendAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	lister := fakeLister{entries: []reminder.ScheduledReminder{{
		AppointmentID: id,
		Kind:          reminder.KindReminder24h,
		Channels:      []reminder.Channel{reminder.ChannelEmail, reminder.ChannelPush},
		SendAt:        sendAt,
	}}}
	h := newTestRouter(&fakeTrigger{}, lister, "")

	rec := do(t, h, http.MethodGet, "/appointments/"+id.String()+"/reminders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RemindersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Reminders, 1)
	assert.Equal(t, "reminder_24h", resp.Reminders[0].Kind)
	assert.Equal(t, []string{"email", "push"}, resp.Reminders[0].Channels)
	assert.True(t, sendAt.Equal(resp.Reminders[0].SendAt))

	rec = do(t, h, http.MethodGet, "/appointments/not-a-uuid/reminders", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = newTestRouter(&fakeTrigger{}, fakeLister{err: errors.New("db down")}, "")
	rec = do(t, h, http.MethodGet, "/appointments/"+id.String()+"/reminders", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	ok := func(context.Context) error { return nil }

	cases := []struct {
		name       string
		pg, redis  PingFunc
		wantCode   int
		wantStatus string
	}{
		{"all up", ok, ok, http.StatusOK, "ok"},
		{"redis down", ok, down, http.StatusOK, "degraded"},
		{"postgres down", down, ok, http.StatusServiceUnavailable, "error"},
		{"memory store", nil, ok, http.StatusOK, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Health: NewHealthHandler(tc.pg, tc.redis, "test", "v0"), Logger: zerolog.Nop()})

			rec := do(t, h, http.MethodGet, "/health/ready", "", nil)
			assert.Equal(t, tc.wantCode, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantStatus, resp.Status)
		})
	}

	h := newTestRouter(&fakeTrigger{}, fakeLister{}, "")
	rec := do(t, h, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "reminders_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewRouter(RouterConfig{Gatherer: reg, Logger: zerolog.Nop()})
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reminders_test_total 1")
}
