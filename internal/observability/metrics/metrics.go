package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics exposes counters/histograms for the reminder engine.
type ReminderMetrics struct {
	scheduledTotal *prometheus.CounterVec
	dispatchTotal  *prometheus.CounterVec
	sweepProcessed prometheus.Counter
	sweepDuration  prometheus.Histogram
	triggerTotal   *prometheus.CounterVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		scheduledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reminders",
			Subsystem: "scheduler",
			Name:      "scheduled_total",
			Help:      "Reminder entries queued for a later send",
		}, []string{"kind"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reminders",
			Subsystem: "dispatch",
			Name:      "sends_total",
			Help:      "Per-channel send attempts",
		}, []string{"kind", "channel", "recipient", "status"}),
		sweepProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reminders",
			Subsystem: "sweep",
			Name:      "processed_total",
			Help:      "Due reminder entries handled by the sweep",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reminders",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall time of one pending-reminder sweep",
			Buckets:   prometheus.DefBuckets,
		}),
		triggerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reminders",
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Appointment lifecycle events by outcome",
		}, []string{"event", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.scheduledTotal, m.dispatchTotal, m.sweepProcessed, m.sweepDuration, m.triggerTotal)
	return m
}

func (m *ReminderMetrics) ObserveScheduled(kind string) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(kind).Inc()
}

func (m *ReminderMetrics) ObserveDispatch(kind, channel, recipient, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(kind, channel, recipient, status).Inc()
}

func (m *ReminderMetrics) ObserveSweep(processed int, seconds float64) {
	if m == nil {
		return
	}
	m.sweepProcessed.Add(float64(processed))
	m.sweepDuration.Observe(seconds)
}

func (m *ReminderMetrics) ObserveTrigger(event, outcome string) {
	if m == nil {
		return
	}
	m.triggerTotal.WithLabelValues(event, outcome).Inc()
}
