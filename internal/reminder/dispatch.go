package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/appointment-reminders/internal/observability/metrics"
)

var tracer = otel.Tracer("appointment-reminders/internal/reminder")

var (
	ErrNoAddress          = errors.New("recipient has no address for channel")
	ErrChannelUnsupported = errors.New("channel not supported")
	ErrTransportMissing   = errors.New("transport not configured")
)

// EmailTransport sends one email and returns a provider reference.
type EmailTransport interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// SMSTransport sends one text message and returns a provider reference.
type SMSTransport interface {
	SendSMS(ctx context.Context, to, text string) (string, error)
}

// PushTransport sends one push notification to a user's devices.
type PushTransport interface {
	SendPush(ctx context.Context, userID, title, body string, data map[string]string) (string, error)
}

type Transports struct {
	Email EmailTransport
	SMS   SMSTransport
	Push  PushTransport
}

// Recipient is who a message goes to. Emergency recipients are always
// addressed with their own contact details.
type Recipient struct {
	Name         string
	Email        string
	Phone        string
	UserID       *uuid.UUID
	Relationship string
	Emergency    bool
}

func (r Recipient) role() string {
	if r.Emergency {
		return "emergency_contact"
	}
	return "patient"
}

// Delivery is the outcome of one (recipient, channel) send.
type Delivery struct {
	Kind      Kind
	Channel   Channel
	Recipient string
	Info      string
	Err       error
}

// Delivered reports whether at least one send went through.
func Delivered(ds []Delivery) bool {
	for _, d := range ds {
		if d.Err == nil {
			return true
		}
	}
	return false
}

type Dispatcher struct {
	transports Transports
	logger     zerolog.Logger
	metrics    *metrics.ReminderMetrics
}

func NewDispatcher(t Transports, logger zerolog.Logger, m *metrics.ReminderMetrics) *Dispatcher {
	return &Dispatcher{transports: t, logger: logger, metrics: m}
}

// Deliver sends a kind to the patient on each channel and, when the
// patient's settings allow it, to the emergency contact. A failing channel
// never stops the others.
func (d *Dispatcher) Deliver(ctx context.Context, k Kind, snap Snapshot, channels []Channel, prefs Preferences) []Delivery {
	patient := Recipient{
		Name:   snap.PatientName,
		Email:  snap.PatientEmail,
		Phone:  snap.PatientPhone,
		UserID: snap.PatientUserID,
	}

	var out []Delivery
	for _, c := range channels {
		out = append(out, d.deliverOne(ctx, c, snap, k, patient))
	}

	if ShouldNotifyEmergencyContact(k, prefs) {
		ec := prefs.EmergencyContact
		contact := Recipient{
			Name:         ec.Name,
			Email:        ec.Email,
			Phone:        ec.Phone,
			Relationship: ec.Relationship,
			Emergency:    true,
		}
		for _, c := range ec.Channels {
			out = append(out, d.deliverOne(ctx, c, snap, k, contact))
		}
	}

	return out
}

func (d *Dispatcher) deliverOne(ctx context.Context, c Channel, snap Snapshot, k Kind, to Recipient) Delivery {
	info, err := d.SendViaChannel(ctx, c, snap, k, to)
	res := Delivery{Kind: k, Channel: c, Recipient: to.role(), Info: info, Err: err}

	status := "sent"
	switch {
	case err == nil:
		d.logger.Info().
			Str("appointment_id", snap.AppointmentID.String()).
			Str("kind", k.String()).
			Str("channel", string(c)).
			Str("recipient", to.role()).
			Str("info", info).
			Msg("reminder sent")
	case errors.Is(err, ErrNoAddress), errors.Is(err, ErrChannelUnsupported), errors.Is(err, ErrTransportMissing):
		status = "skipped"
		d.logger.Warn().Err(err).
			Str("appointment_id", snap.AppointmentID.String()).
			Str("kind", k.String()).
			Str("channel", string(c)).
			Str("recipient", to.role()).
			Msg("reminder channel skipped")
	default:
		status = "failed"
		d.logger.Error().Err(err).
			Str("appointment_id", snap.AppointmentID.String()).
			Str("kind", k.String()).
			Str("channel", string(c)).
			Str("recipient", to.role()).
			Msg("reminder send failed")
	}
	d.metrics.ObserveDispatch(k.String(), string(c), to.role(), status)

	return res
}

// SendViaChannel renders the kind's template for the channel and hands it to
// the matching transport. Transport panics come back as errors.
func (d *Dispatcher) SendViaChannel(ctx context.Context, c Channel, snap Snapshot, k Kind, to Recipient) (info string, err error) {
	ctx, span := tracer.Start(ctx, "reminder.send", trace.WithAttributes(
		attribute.String("reminder.kind", k.String()),
		attribute.String("reminder.channel", string(c)),
		attribute.String("reminder.recipient", to.role()),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s transport panicked: %v", c, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c != ChannelEmail && c != ChannelSMS && c != ChannelPush {
		return "", fmt.Errorf("%w: %s", ErrChannelUnsupported, c)
	}

	msg, err := Render(k, c, messageData{Snapshot: snap, Recipient: to})
	if err != nil {
		return "", err
	}

	switch c {
	case ChannelEmail:
		if to.Email == "" {
			return "", fmt.Errorf("%w: email", ErrNoAddress)
		}
		if d.transports.Email == nil {
			return "", fmt.Errorf("%w: email", ErrTransportMissing)
		}
		return d.transports.Email.SendEmail(ctx, to.Email, msg.Title, msg.Body)
	case ChannelSMS:
		if to.Phone == "" {
			return "", fmt.Errorf("%w: sms", ErrNoAddress)
		}
		if d.transports.SMS == nil {
			return "", fmt.Errorf("%w: sms", ErrTransportMissing)
		}
		return d.transports.SMS.SendSMS(ctx, to.Phone, msg.Body)
	case ChannelPush:
		if to.UserID == nil {
			return "", fmt.Errorf("%w: push", ErrNoAddress)
		}
		if d.transports.Push == nil {
			return "", fmt.Errorf("%w: push", ErrTransportMissing)
		}
		data := map[string]string{
			"appointment_id": snap.AppointmentID.String(),
			"kind":           k.String(),
		}
		return d.transports.Push.SendPush(ctx, to.UserID.String(), msg.Title, msg.Body, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrChannelUnsupported, c)
	}
}
