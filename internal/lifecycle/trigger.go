package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/observability/metrics"
)

// Outcome says what the trigger did with an event.
type Outcome string

const (
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeScheduled        Outcome = "scheduled"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeRescheduled      Outcome = "rescheduled"
	OutcomeReactivated      Outcome = "reactivated"
	OutcomeNoop             Outcome = "noop"
	OutcomeFailed           Outcome = "failed"
)

const (
	eventCreated = "created"
	eventUpdated = "updated"

	DefaultMarkerTTL = 120 * time.Second
)

// Scheduler is the part of reminder.Scheduler the trigger drives.
type Scheduler interface {
	ScheduleAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	RescheduleAppointmentReminders(ctx context.Context, appointmentID uuid.UUID, previousStart time.Time) (bool, error)
	CancelAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	SendCancellationNotice(ctx context.Context, appointmentID uuid.UUID) (bool, error)
}

// Marker deduplicates events that are delivered more than once.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Trigger turns appointment created/updated events into scheduler calls.
// Its handlers never return errors: the host's save must not fail because
// reminders could not be scheduled.
type Trigger struct {
	scheduler Scheduler
	marker    Marker
	markerTTL time.Duration
	logger    zerolog.Logger
	metrics   *metrics.ReminderMetrics
	now       func() time.Time
}

type Option func(*Trigger)

func WithMarker(m Marker, ttl time.Duration) Option {
	return func(t *Trigger) {
		t.marker = m
		if ttl > 0 {
			t.markerTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(t *Trigger) { t.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

func NewTrigger(s Scheduler, logger zerolog.Logger, opts ...Option) *Trigger {
	t := &Trigger{
		scheduler: s,
		markerTTL: DefaultMarkerTTL,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnAppointmentCreated schedules reminders for a new future appointment.
func (t *Trigger) OnAppointmentCreated(ctx context.Context, current appointment.Appointment) Outcome {
	return t.handle(ctx, eventCreated, current, func(ctx context.Context) (Outcome, error) {
		if !current.IsFutureActive(t.now()) {
			return OutcomeNoop, nil
		}
		if _, err := t.scheduler.ScheduleAppointmentReminders(ctx, current.ID); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeScheduled, nil
	})
}

// OnAppointmentUpdated diffs the state before and after a save. previous
// must be captured by the host before the update is persisted.
func (t *Trigger) OnAppointmentUpdated(ctx context.Context, previous, current appointment.Appointment) Outcome {
	return t.handle(ctx, eventUpdated, current, func(ctx context.Context) (Outcome, error) {
		return t.applyUpdate(ctx, previous, current)
	})
}

func (t *Trigger) applyUpdate(ctx context.Context, previous, current appointment.Appointment) (Outcome, error) {
	now := t.now()
	id := current.ID

	switch {
	case current.Status.IsTerminal() && !previous.Status.IsTerminal():
		if _, err := t.scheduler.CancelAppointmentReminders(ctx, id); err != nil {
			return OutcomeFailed, err
		}
		if current.Status == appointment.StatusCancelled && previous.IsFutureActive(now) {
			if _, err := t.scheduler.SendCancellationNotice(ctx, id); err != nil {
				t.logger.Error().Err(err).Str("appointment_id", id.String()).Msg("failed to send cancellation notice")
			}
		}
		return OutcomeCancelled, nil

	case current.Status.IsActive() && !previous.Status.IsActive():
		if !current.IsFutureActive(now) {
			return OutcomeNoop, nil
		}
		if _, err := t.scheduler.ScheduleAppointmentReminders(ctx, id); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeReactivated, nil

	case current.Status.IsActive() && !current.StartsAt.Equal(previous.StartsAt):
		// Full rebuild, never a patch of individual entries.
		if _, err := t.scheduler.CancelAppointmentReminders(ctx, id); err != nil {
			return OutcomeFailed, err
		}
		if !current.IsFutureActive(now) {
			return OutcomeCancelled, nil
		}
		if _, err := t.scheduler.RescheduleAppointmentReminders(ctx, id, previous.StartsAt); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeRescheduled, nil
	}

	return OutcomeNoop, nil
}

func (t *Trigger) handle(ctx context.Context, event string, current appointment.Appointment, fn func(context.Context) (Outcome, error)) (outcome Outcome) {
	log := t.logger.With().
		Str("appointment_id", current.ID.String()).
		Str("event", event).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("lifecycle handler panicked")
			outcome = OutcomeFailed
		}
		t.metrics.ObserveTrigger(event, string(outcome))
	}()

	if t.marker != nil {
		key := MarkerKey(current.ID, event, current.UpdatedAt)
		fresh, err := t.marker.MarkOnce(ctx, key, t.markerTTL)
		switch {
		case err != nil:
			// Marker store down: risk a duplicate rather than lose reminders.
			log.Warn().Err(err).Msg("idempotency marker unavailable, processing anyway")
		case !fresh:
			log.Debug().Msg("event already handled, skipping")
			return OutcomeSkippedDuplicate
		}
	}

	outcome, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to update reminders")
		return OutcomeFailed
	}

	log.Info().Str("outcome", string(outcome)).Msg("lifecycle event handled")
	return outcome
}

// MarkerKey is the idempotency key for one delivery of an event. The
// version keeps two real updates inside the TTL from colliding.
func MarkerKey(appointmentID uuid.UUID, event string, version time.Time) string {
	return fmt.Sprintf("reminders:event:%s:%s:%d", appointmentID, event, version.UnixNano())
}
