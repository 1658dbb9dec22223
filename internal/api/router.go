package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/lifecycle"
	"github.com/hackgods/appointment-reminders/internal/reminder"
)

// LifecycleHandler receives appointment events from the host application.
type LifecycleHandler interface {
	OnAppointmentCreated(ctx context.Context, current appointment.Appointment) lifecycle.Outcome
	OnAppointmentUpdated(ctx context.Context, previous, current appointment.Appointment) lifecycle.Outcome
}

type ReminderLister interface {
	ListAppointmentReminders(ctx context.Context, appointmentID uuid.UUID) ([]reminder.ScheduledReminder, error)
}

type RouterConfig struct {
	Trigger    LifecycleHandler
	Reminders  ReminderLister
	Health     *HealthHandler
	Gatherer   prometheus.Gatherer
	Logger     zerolog.Logger
	HookSecret string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/hooks/appointments", func(hr chi.Router) {
		hr.Use(HookSecretMiddleware(cfg.HookSecret))
		hr.Post("/created", appointmentCreatedHandler(cfg.Trigger))
		hr.Post("/updated", appointmentUpdatedHandler(cfg.Trigger))
	})

	r.Get("/appointments/{id}/reminders", listRemindersHandler(cfg.Reminders))

	return r
}
