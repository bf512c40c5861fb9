package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Provider (upstream API) metrics
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerRetries      *prometheus.CounterVec
	providerRateLimits   *prometheus.CounterVec

	// Realtime store metrics
	realtimeSubscriptions *prometheus.GaugeVec
	realtimeEventsTotal   *prometheus.CounterVec

	// Snapshot poller metrics
	snapshotWorkflowDuration *prometheus.HistogramVec
	snapshotActivityDuration *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		providerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Total number of upstream provider calls by provider, operation and status",
			},
			[]string{"provider", "operation", "status"},
		),
		providerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "Duration of upstream provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"provider", "operation"},
		),
		providerRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_retries_total",
				Help: "Total number of retry attempts made by the retry helper",
			},
			[]string{"operation"},
		),
		providerRateLimits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_rate_limit_hits_total",
				Help: "Total number of 429 responses returned by upstream providers",
			},
			[]string{"provider"},
		),

		realtimeSubscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "realtime_subscriptions",
				Help: "Number of live realtime subscription handles",
			},
			[]string{"table"},
		),
		realtimeEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_events_total",
				Help: "Total number of change events delivered to subscription callbacks",
			},
			[]string{"table", "result"},
		),

		snapshotWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapshot_workflow_duration_seconds",
				Help:    "Duration of wallet snapshot workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		snapshotActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapshot_activity_duration_seconds",
				Help:    "Duration of wallet snapshot activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"stream", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"table", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"table"},
		),
	}
}

// Provider metric helpers

// RecordProviderCall records an upstream provider call with duration.
func (m *Metrics) RecordProviderCall(provider, operation, status string, duration float64) {
	m.providerCallsTotal.WithLabelValues(provider, operation, status).Inc()
	m.providerCallDuration.WithLabelValues(provider, operation).Observe(duration)
}

// RecordRetry records a retry attempt.
func (m *Metrics) RecordRetry(operation string) {
	m.providerRetries.WithLabelValues(operation).Inc()
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(provider string) {
	m.providerRateLimits.WithLabelValues(provider).Inc()
}

// Realtime metric helpers

// RecordSubscriptionChange records a change in live subscription handles.
func (m *Metrics) RecordSubscriptionChange(table string, delta float64) {
	m.realtimeSubscriptions.WithLabelValues(table).Add(delta)
}

// RecordChangeEvent records a change event being delivered or filtered out.
func (m *Metrics) RecordChangeEvent(table, result string) {
	m.realtimeEventsTotal.WithLabelValues(table, result).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records snapshot workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.snapshotWorkflowDuration.WithLabelValues(status).Observe(duration)
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.snapshotActivityDuration.WithLabelValues(activity).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(table, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(table, status).Inc()
	m.natsPublishDuration.WithLabelValues(table).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
