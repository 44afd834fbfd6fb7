package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// Recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	UploadsTotal      *prometheus.CounterVec
	UserErrorsTotal   *prometheus.CounterVec

	// Storage metrics
	CleanupFailuresTotal prometheus.Counter
	JanitorRunsTotal     *prometheus.CounterVec
	SweptFilesTotal      prometheus.Counter

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsExpired prometheus.Counter
	QueueLanes      prometheus.Gauge

	// Telegram metrics
	TelegramMessagesSentTotal     prometheus.Counter
	TelegramMessagesReceivedTotal prometheus.Counter
	TelegramErrorsTotal           prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Operation metrics
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_total",
				Help: "Total number of document transforms by operation and status",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_duration_seconds",
				Help:    "Duration of document transforms in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Total number of received uploads by kind and status",
			},
			[]string{"kind", "status"},
		),
		UserErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_errors_total",
				Help: "Total number of rejected user inputs by reason",
			},
			[]string{"reason"},
		),

		// Storage metrics
		CleanupFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cleanup_failures_total",
				Help: "Total number of temporary files that could not be removed",
			},
		),
		JanitorRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "janitor_runs_total",
				Help: "Total number of janitor runs by status",
			},
			[]string{"status"},
		),
		SweptFilesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swept_files_total",
				Help: "Total number of orphaned scratch files removed by the janitor",
			},
		),

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of conversations with a session in memory",
			},
		),
		SessionsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_expired_total",
				Help: "Total number of idle sessions reaped",
			},
		),
		QueueLanes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "queue_lanes",
				Help: "Number of conversation lanes with pending or running events",
			},
		),

		// Telegram metrics
		TelegramMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_messages_sent_total",
				Help: "Total number of Telegram messages sent",
			},
		),
		TelegramMessagesReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_messages_received_total",
				Help: "Total number of Telegram messages received",
			},
		),
		TelegramErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_errors_total",
				Help: "Total number of Telegram errors",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.UploadsTotal,
		m.UserErrorsTotal,
		m.CleanupFailuresTotal,
		m.JanitorRunsTotal,
		m.SweptFilesTotal,
		m.SessionsActive,
		m.SessionsExpired,
		m.QueueLanes,
		m.TelegramMessagesSentTotal,
		m.TelegramMessagesReceivedTotal,
		m.TelegramErrorsTotal,
	)
	m.registry.MustRegister(collectors.NewGoCollector())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordOperation counts one transform and observes its duration
func (m *Metrics) RecordOperation(operation string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status(success)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpload counts one received upload
func (m *Metrics) RecordUpload(kind string, success bool) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(kind, status(success)).Inc()
}

// RecordUserError counts one rejected input
func (m *Metrics) RecordUserError(reason string) {
	if m == nil {
		return
	}
	m.UserErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordCleanup counts failed removals of temporary files
func (m *Metrics) RecordCleanup(ok bool) {
	if m == nil || ok {
		return
	}
	m.CleanupFailuresTotal.Inc()
}

// RecordJanitorRun counts one janitor pass
func (m *Metrics) RecordJanitorRun(expired, swept int, success bool) {
	if m == nil {
		return
	}
	m.JanitorRunsTotal.WithLabelValues(status(success)).Inc()
	m.SessionsExpired.Add(float64(expired))
	m.SweptFilesTotal.Add(float64(swept))
}

// SetActiveSessions updates the in-memory session gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// SetQueueLanes updates the lane gauge
func (m *Metrics) SetQueueLanes(n int) {
	if m == nil {
		return
	}
	m.QueueLanes.Set(float64(n))
}

// RecordTelegramReceived counts one inbound update
func (m *Metrics) RecordTelegramReceived() {
	if m == nil {
		return
	}
	m.TelegramMessagesReceivedTotal.Inc()
}

// RecordTelegramSent counts one outbound message
func (m *Metrics) RecordTelegramSent() {
	if m == nil {
		return
	}
	m.TelegramMessagesSentTotal.Inc()
}

// RecordTelegramError counts one failed Telegram call
func (m *Metrics) RecordTelegramError() {
	if m == nil {
		return
	}
	m.TelegramErrorsTotal.Inc()
}
