package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/observability/metrics"
)

// AppointmentSource loads the current state of an appointment.
type AppointmentSource interface {
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
}

// Scheduler computes, stores, sends and cancels appointment reminders.
type Scheduler struct {
	appointments AppointmentSource
	store        Store
	dispatcher   *Dispatcher
	projector    Projector
	logger       zerolog.Logger
	metrics      *metrics.ReminderMetrics
	now          func() time.Time
}

type Option func(*Scheduler)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithProjector(p Projector) Option {
	return func(s *Scheduler) { s.projector = p }
}

func NewScheduler(appointments AppointmentSource, store Store, dispatcher *Dispatcher, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		appointments: appointments,
		store:        store,
		dispatcher:   dispatcher,
		projector:    NewProjector(time.UTC, DefaultVenue),
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleAppointmentReminders queues every timed reminder still ahead of
// now and sends the confirmation straight away. It returns true when at
// least one reminder was queued or sent.
func (s *Scheduler) ScheduleAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	d, err := s.appointments.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return false, fmt.Errorf("load appointment: %w", err)
	}
	return s.schedule(ctx, d, KindConfirmation, "")
}

// RescheduleAppointmentReminders rebuilds the queue after a date or time
// change. The immediate notice is a rescheduling notice instead of a
// confirmation.
func (s *Scheduler) RescheduleAppointmentReminders(ctx context.Context, appointmentID uuid.UUID, previousStart time.Time) (bool, error) {
	d, err := s.appointments.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return false, fmt.Errorf("load appointment: %w", err)
	}
	previous := ""
	if !previousStart.IsZero() {
		prev := *d
		prev.StartsAt = previousStart
		previous = s.projector.Project(&prev).DateTime
	}
	return s.schedule(ctx, d, KindRescheduling, previous)
}

func (s *Scheduler) schedule(ctx context.Context, d *appointment.AppointmentDetail, immediateKind Kind, previousDateTime string) (bool, error) {
	log := s.logger.With().Str("appointment_id", d.ID.String()).Logger()

	if !d.Status.IsActive() {
		log.Debug().Str("status", string(d.Status)).Msg("appointment not schedulable, skipping reminders")
		return false, nil
	}

	now := s.now()
	snap := s.projector.Project(d)
	snap.PreviousDateTime = previousDateTime
	prefs := ResolvePreferences(d.Patient)

	type immediateSend struct {
		kind     Kind
		channels []Channel
	}
	var (
		entries   []ScheduledReminder
		immediate []immediateSend
	)

	for _, p := range Policies() {
		if !p.Active || p.EventDriven {
			continue
		}

		sendAt := p.SendTime(d.StartsAt, now).UTC().Truncate(time.Microsecond)

		if sendAt.After(now) {
			channels := FilterChannels(p.Channels, prefs)
			if len(channels) == 0 {
				log.Info().Str("kind", p.Kind.String()).Msg("all channels disabled by patient, reminder not queued")
				continue
			}
			entries = append(entries, ScheduledReminder{
				AppointmentID: d.ID,
				Kind:          p.Kind,
				Channels:      channels,
				SendAt:        sendAt,
				Snapshot:      snap,
				PatientID:     d.PatientID,
				ProviderID:    d.ProviderID,
				CreatedAt:     now.UTC(),
			})
			continue
		}

		if p.Kind != KindConfirmation {
			log.Debug().Str("kind", p.Kind.String()).Time("send_at", sendAt).Msg("send time already passed, reminder skipped")
			continue
		}

		channels := FilterChannels(MustPolicy(immediateKind).Channels, prefs)
		if len(channels) == 0 && !ShouldNotifyEmergencyContact(immediateKind, prefs) {
			log.Info().Str("kind", immediateKind.String()).Msg("all channels disabled by patient, notice not sent")
			continue
		}
		immediate = append(immediate, immediateSend{kind: immediateKind, channels: channels})
	}

	// Entries are committed before anything goes out on the wire.
	if err := s.store.Replace(ctx, d.ID, entries); err != nil {
		return false, fmt.Errorf("store reminders: %w", err)
	}
	for _, e := range entries {
		s.metrics.ObserveScheduled(e.Kind.String())
		log.Info().Str("kind", e.Kind.String()).Time("send_at", e.SendAt).Msg("reminder queued")
	}

	sent := false
	for _, im := range immediate {
		if Delivered(s.dispatcher.Deliver(ctx, im.kind, snap, im.channels, prefs)) {
			sent = true
		}
	}

	return len(entries) > 0 || sent, nil
}

// CancelAppointmentReminders drops every queued reminder of an appointment.
// It is idempotent: a second call finds nothing and returns false.
func (s *Scheduler) CancelAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	n, err := s.store.DeleteByAppointment(ctx, appointmentID)
	if err != nil {
		return false, fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		s.logger.Info().Str("appointment_id", appointmentID.String()).Int("removed", n).Msg("reminders cancelled")
	}
	return n > 0, nil
}

// SendCancellationNotice tells the patient (and, if allowed, the emergency
// contact) that the appointment was cancelled.
func (s *Scheduler) SendCancellationNotice(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	d, err := s.appointments.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return false, fmt.Errorf("load appointment: %w", err)
	}

	prefs := ResolvePreferences(d.Patient)
	channels := FilterChannels(MustPolicy(KindCancellation).Channels, prefs)
	if len(channels) == 0 && !ShouldNotifyEmergencyContact(KindCancellation, prefs) {
		return false, nil
	}
	return Delivered(s.dispatcher.Deliver(ctx, KindCancellation, s.projector.Project(d), channels, prefs)), nil
}

// ListAppointmentReminders returns the queued reminders of an appointment.
func (s *Scheduler) ListAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error) {
	return s.store.ListByAppointment(ctx, appointmentID)
}

// ProcessPendingReminders sends every reminder whose send time has come and
// removes it from the queue. Entries whose appointment is gone or finished
// are dropped unsent. One failing entry or channel does not stop the rest.
// Delivery is at-least-once: a crash between send and delete resends.
func (s *Scheduler) ProcessPendingReminders(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.now()

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		s.metrics.ObserveSweep(0, time.Since(start).Seconds())
		return 0, nil
	}

	s.logger.Info().Int("count", len(due)).Msg("processing due reminders")

	processed := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		e := due[i]
		if e.SendAt.After(now) {
			continue
		}
		if !s.processEntry(ctx, e) {
			continue
		}
		if _, err := s.store.Delete(ctx, e.Key()); err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", e.AppointmentID.String()).
				Str("kind", e.Kind.String()).
				Msg("failed to remove processed reminder")
		}
		processed++
	}

	s.metrics.ObserveSweep(processed, time.Since(start).Seconds())
	return processed, nil
}

// processEntry returns false when the entry should stay queued for the next
// sweep (the appointment could not be loaded for a transient reason).
func (s *Scheduler) processEntry(ctx context.Context, e ScheduledReminder) (handled bool) {
	log := s.logger.With().
		Str("appointment_id", e.AppointmentID.String()).
		Str("kind", e.Kind.String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("reminder processing panicked")
			handled = true
		}
	}()

	d, err := s.appointments.GetAppointmentDetail(ctx, e.AppointmentID)
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		log.Info().Msg("appointment gone, dropping reminder")
		return true
	case err != nil:
		log.Error().Err(err).Msg("failed to reload appointment, reminder kept for next sweep")
		return false
	}

	if d.Status.IsTerminal() {
		log.Info().Str("status", string(d.Status)).Msg("appointment no longer active, dropping reminder")
		return true
	}

	prefs := ResolvePreferences(d.Patient)
	s.dispatcher.Deliver(ctx, e.Kind, s.projector.Project(d), e.Channels, prefs)
	return true
}
