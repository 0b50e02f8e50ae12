// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Inbound message processing metrics
	MessagesProcessedTotal  *prometheus.CounterVec
	MessageProcessDuration  prometheus.Histogram
	WebhooksReceivedTotal   *prometheus.CounterVec

	// Journey and scoring metrics
	StageTransitionsTotal *prometheus.CounterVec
	HotLeadAlertsTotal    prometheus.Counter
	LeadsCreatedTotal     prometheus.Counter

	// Automation metrics
	FollowUpsSentTotal   *prometheus.CounterVec
	SweepDuration        *prometheus.HistogramVec
	SlowMoversFlagged    prometheus.Gauge
	ReservationsTotal    *prometheus.CounterVec

	// Outbound gateway metrics
	OutboundSendsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge

	// Registry used for this metrics instance (nil means default registry)
	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealerflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dealerflow_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Inbound message processing metrics
		MessagesProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_messages_processed_total",
				Help: "Total number of inbound messages processed by outcome",
			},
			[]string{"outcome"},
		),
		MessageProcessDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dealerflow_message_process_duration_seconds",
				Help:    "Inbound message processing duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		WebhooksReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_webhooks_received_total",
				Help: "Total number of webhook deliveries by status",
			},
			[]string{"status"}, // "ok", "invalid_signature", "malformed"
		),

		// Journey and scoring metrics
		StageTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_stage_transitions_total",
				Help: "Total number of journey stage transitions",
			},
			[]string{"from", "to"},
		),
		HotLeadAlertsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dealerflow_hot_lead_alerts_total",
				Help: "Total number of hot-lead alerts sent to the sales team",
			},
		),
		LeadsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dealerflow_leads_created_total",
				Help: "Total number of leads created from inbound messages",
			},
		),

		// Automation metrics
		FollowUpsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_follow_ups_sent_total",
				Help: "Total number of automated follow-ups sent by rule tag",
			},
			[]string{"tag"},
		),
		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealerflow_sweep_duration_seconds",
				Help:    "Periodic automation sweep duration in seconds by mode",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		SlowMoversFlagged: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dealerflow_slow_movers_flagged",
				Help: "Number of vehicles flagged as slow moving in the last sweep",
			},
		),
		ReservationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_reservations_total",
				Help: "Total number of automated vehicle reservations by outcome",
			},
			[]string{"outcome"},
		),

		// Outbound gateway metrics
		OutboundSendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealerflow_outbound_sends_total",
				Help: "Total number of outbound WhatsApp sends by outcome",
			},
			[]string{"outcome"},
		),

		// Database metrics
		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dealerflow_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dealerflow_db_connections_in_use",
				Help: "Number of database connections currently in use",
			},
		),
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Normalize path for metrics (avoid high cardinality)
		path := normalizePath(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		m.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath normalizes URL paths to prevent high cardinality labels.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/ready", "/live", "/metrics":
		return path
	}

	if len(path) > 9 && path[:9] == "/webhook/" {
		return "/webhook/:channel"
	}
	if len(path) > 12 && path[:12] == "/automation/" {
		return "/automation/:action"
	}

	return path
}

// Helper methods for recording specific events

// RecordMessageProcessed records an inbound message processing outcome.
func (m *Metrics) RecordMessageProcessed(success bool, duration time.Duration) {
	outcome := outcomeSuccess
	if !success {
		outcome = outcomeFailure
	}
	m.MessagesProcessedTotal.WithLabelValues(outcome).Inc()
	m.MessageProcessDuration.Observe(duration.Seconds())
}

// RecordWebhook records an incoming webhook delivery.
func (m *Metrics) RecordWebhook(status string) {
	m.WebhooksReceivedTotal.WithLabelValues(status).Inc()
}

// RecordStageTransition records a journey stage change.
func (m *Metrics) RecordStageTransition(from, to string) {
	m.StageTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordHotLeadAlert records a sales-team alert.
func (m *Metrics) RecordHotLeadAlert() {
	m.HotLeadAlertsTotal.Inc()
}

// RecordLeadCreated records a newly captured lead.
func (m *Metrics) RecordLeadCreated() {
	m.LeadsCreatedTotal.Inc()
}

// RecordFollowUpSent records an automated follow-up by rule tag.
func (m *Metrics) RecordFollowUpSent(tag string) {
	m.FollowUpsSentTotal.WithLabelValues(tag).Inc()
}

// RecordSweep records a periodic automation sweep duration.
func (m *Metrics) RecordSweep(mode string, duration time.Duration) {
	m.SweepDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// SetSlowMoversFlagged records the slow-mover count from the last sweep.
func (m *Metrics) SetSlowMoversFlagged(count int) {
	m.SlowMoversFlagged.Set(float64(count))
}

// RecordReservation records a vehicle reservation attempt.
func (m *Metrics) RecordReservation(success bool) {
	outcome := outcomeSuccess
	if !success {
		outcome = outcomeFailure
	}
	m.ReservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordOutboundSend records an outbound WhatsApp send.
func (m *Metrics) RecordOutboundSend(success bool) {
	outcome := outcomeSuccess
	if !success {
		outcome = outcomeFailure
	}
	m.OutboundSendsTotal.WithLabelValues(outcome).Inc()
}

// UpdateDBConnections updates database connection gauges.
func (m *Metrics) UpdateDBConnections(open, inUse int) {
	m.DBConnectionsOpen.Set(float64(open))
	m.DBConnectionsInUse.Set(float64(inUse))
}
