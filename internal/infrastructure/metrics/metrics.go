package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the node's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	NotificationsTotal *prometheus.CounterVec
	RemindersTotal     *prometheus.CounterVec
	CompletionsTotal   prometheus.Counter
	ChangeEventsTotal  *prometheus.CounterVec
	MirroredTasks      prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "familyboard_notifications_total",
				Help: "Notification attempts by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		RemindersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "familyboard_reminders_total",
				Help: "Deadline reminders handled by this node",
			},
			[]string{"result"},
		),
		CompletionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "familyboard_completions_total",
				Help: "Completion notices sent by this node",
			},
		),
		ChangeEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "familyboard_change_events_total",
				Help: "Change feed events applied to the task mirror",
			},
			[]string{"kind"},
		),
		MirroredTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "familyboard_mirrored_tasks",
				Help: "Tasks currently held in the local mirror",
			},
		),
	}

	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.NotificationsTotal,
		m.RemindersTotal,
		m.CompletionsTotal,
		m.ChangeEventsTotal,
		m.MirroredTasks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveNotification counts one delivery attempt. Safe on a nil receiver.
func (m *Metrics) ObserveNotification(channel, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// ObserveReminder counts a reminder decision: "sent", "no_channel",
// "claimed_elsewhere" or "task_gone".
func (m *Metrics) ObserveReminder(result string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(result).Inc()
}

// ObserveCompletion counts one completion notice.
func (m *Metrics) ObserveCompletion() {
	if m == nil {
		return
	}
	m.CompletionsTotal.Inc()
}

// ObserveChangeEvent counts one applied change feed event.
func (m *Metrics) ObserveChangeEvent(kind string) {
	if m == nil {
		return
	}
	m.ChangeEventsTotal.WithLabelValues(kind).Inc()
}

// SetMirrored records the size of the task mirror.
func (m *Metrics) SetMirrored(n int) {
	if m == nil {
		return
	}
	m.MirroredTasks.Set(float64(n))
}
