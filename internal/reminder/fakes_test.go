package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/appointment"
)

type sentMessage struct {
	Channel Channel
	To      string
	Title   string
	Body    string
	Data    map[string]string
}

// recordingTransport implements all three transports and remembers every
// send. failOn makes a channel return an error, panicOn makes it panic.
type recordingTransport struct {
	mu      sync.Mutex
	sent    []sentMessage
	failOn  map[Channel]bool
	panicOn map[Channel]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{failOn: map[Channel]bool{}, panicOn: map[Channel]bool{}}
}

func (t *recordingTransport) record(c Channel, to, title, body string, data map[string]string) (string, error) {
	if t.panicOn[c] {
		panic("provider exploded")
	}
	if t.failOn[c] {
		return "", errors.New("provider rejected message")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{Channel: c, To: to, Title: title, Body: body, Data: data})
	return "msg-" + string(c), nil
}

func (t *recordingTransport) SendEmail(_ context.Context, to, subject, body string) (string, error) {
	return t.record(ChannelEmail, to, subject, body, nil)
}

func (t *recordingTransport) SendSMS(_ context.Context, to, text string) (string, error) {
	return t.record(ChannelSMS, to, "", text, nil)
}

func (t *recordingTransport) SendPush(_ context.Context, userID, title, body string, data map[string]string) (string, error) {
	return t.record(ChannelPush, userID, title, body, data)
}

func (t *recordingTransport) transports() Transports {
	return Transports{Email: t, SMS: t, Push: t}
}

func (t *recordingTransport) messages() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentMessage(nil), t.sent...)
}

func (t *recordingTransport) to(addr string) []sentMessage {
	var out []sentMessage
	for _, m := range t.messages() {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

type fakeAppointments struct {
	mu      sync.Mutex
	details map[uuid.UUID]*appointment.AppointmentDetail
	err     error
}

func newFakeAppointments(ds ...*appointment.AppointmentDetail) *fakeAppointments {
	f := &fakeAppointments{details: map[uuid.UUID]*appointment.AppointmentDetail{}}
	for _, d := range ds {
		f.put(d)
	}
	return f
}

func (f *fakeAppointments) put(d *appointment.AppointmentDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.ID] = d
}

func (f *fakeAppointments) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *d
	return &cp, nil
}

func ptr[T any](v T) *T { return &v }

var testNow = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newDetail builds a confirmed appointment starting tomorrow at 10:00 for a
// patient with email, phone and a portal account.
func newDetail() *appointment.AppointmentDetail {
	patientID := uuid.New()
	providerID := uuid.New()
	return &appointment.AppointmentDetail{
		Appointment: appointment.Appointment{
			ID:         uuid.New(),
			PatientID:  patientID,
			ProviderID: providerID,
			StartsAt:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			Duration:   30 * time.Minute,
			Status:     appointment.StatusConfirmed,
		},
		Patient: &appointment.Patient{
			ID:        patientID,
			UserID:    ptr(uuid.New()),
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     ptr("ada@example.com"),
			Phone:     ptr("+15550100"),
		},
		Provider: &appointment.Provider{ID: providerID, Title: ptr("Dr."), FirstName: "Grace", LastName: "Hopper"},
		Type:     &appointment.AppointmentType{Name: "Consultation", DurationMinutes: 30},
	}
}

func withEmergencyContact(d *appointment.AppointmentDetail, tags ...string) *appointment.AppointmentDetail {
	d.Patient.NotifyEmergencyContact = true
	d.Patient.EmergencyContactNotificationTypes = tags
	d.Patient.EmergencyContactName = ptr("Byron")
	d.Patient.EmergencyContactRelationship = ptr("parent")
	d.Patient.EmergencyContactEmail = ptr("byron@example.com")
	d.Patient.EmergencyContactPhone = ptr("+15550199")
	return d
}

func newTestScheduler(src AppointmentSource, store Store, tr *recordingTransport, now time.Time) *Scheduler {
	d := NewDispatcher(tr.transports(), zerolog.Nop(), nil)
	return NewScheduler(src, store, d, zerolog.Nop(), WithClock(fixedClock(now)))
}
