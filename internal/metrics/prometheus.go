// Package metrics defines the Prometheus instrumentation for the FastRTC
// audio interface service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service
type Metrics struct {
	// Stream registry metrics
	ActiveStreams    prometheus.Gauge
	StreamsCreated   prometheus.Counter
	StreamsDestroyed prometheus.Counter
	StreamDuration   prometheus.Histogram
	StreamsReaped    prometheus.Counter

	// Audio buffering metrics
	ChunksBuffered      prometheus.Counter
	ChunksDropped       prometheus.Counter
	UnknownStreamChunks prometheus.Counter
	FlushesTriggered    prometheus.Counter
	FlushFailures       prometheus.Counter
	FlushDuration       prometheus.Histogram
	FlushPayloadBytes   prometheus.Histogram

	// Control-channel metrics
	Connections        prometheus.Gauge
	MessagesDispatched *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// New creates all service metrics and registers them on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Stream registry metrics
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fastrtc_active_streams",
			Help: "Current number of registered media streams",
		}),
		StreamsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_streams_created_total",
			Help: "Total number of streams created",
		}),
		StreamsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_streams_destroyed_total",
			Help: "Total number of streams removed",
		}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fastrtc_stream_duration_seconds",
			Help:    "Lifetime of removed streams in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		StreamsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_streams_reaped_total",
			Help: "Total number of streams removed by idle eviction",
		}),

		// Audio buffering metrics
		ChunksBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_audio_chunks_buffered_total",
			Help: "Total number of audio chunks appended to stream buffers",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_audio_chunks_dropped_total",
			Help: "Total number of audio chunks dropped by the buffer cap",
		}),
		UnknownStreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_audio_unknown_stream_chunks_total",
			Help: "Total number of audio chunks addressed to unknown streams",
		}),
		FlushesTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_audio_flushes_total",
			Help: "Total number of buffer flushes executed",
		}),
		FlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastrtc_audio_flush_failures_total",
			Help: "Total number of flushes whose sink invocation failed",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fastrtc_audio_flush_duration_seconds",
			Help:    "Duration of buffer flushes including the sink call",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		FlushPayloadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fastrtc_audio_flush_payload_bytes",
			Help:    "Size of flushed payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Control-channel metrics
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fastrtc_control_connections",
			Help: "Current number of connected control channels",
		}),
		MessagesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrtc_messages_dispatched_total",
			Help: "Total number of dispatched control messages",
		}, []string{"type", "status"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrtc_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fastrtc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrtc_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// SetActiveStreams sets the current number of registered streams
func (m *Metrics) SetActiveStreams(count int) {
	m.ActiveStreams.Set(float64(count))
}

// RecordStreamCreated increments the streams created counter
func (m *Metrics) RecordStreamCreated() {
	m.StreamsCreated.Inc()
}

// RecordStreamDestroyed increments the streams destroyed counter and records lifetime
func (m *Metrics) RecordStreamDestroyed(durationSeconds float64) {
	m.StreamsDestroyed.Inc()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordStreamReaped increments the idle eviction counter
func (m *Metrics) RecordStreamReaped() {
	m.StreamsReaped.Inc()
}

// RecordChunkBuffered increments the buffered chunks counter
func (m *Metrics) RecordChunkBuffered() {
	m.ChunksBuffered.Inc()
}

// RecordChunkDropped increments the dropped chunks counter
func (m *Metrics) RecordChunkDropped() {
	m.ChunksDropped.Inc()
}

// RecordUnknownStreamChunk increments the unknown stream chunks counter
func (m *Metrics) RecordUnknownStreamChunk() {
	m.UnknownStreamChunks.Inc()
}

// RecordFlush records an executed flush with its payload size and outcome
func (m *Metrics) RecordFlush(durationSeconds float64, payloadBytes int, failed bool) {
	m.FlushesTriggered.Inc()
	m.FlushDuration.Observe(durationSeconds)
	m.FlushPayloadBytes.Observe(float64(payloadBytes))
	if failed {
		m.FlushFailures.Inc()
	}
}

// SetConnections sets the current number of control channels
func (m *Metrics) SetConnections(count int) {
	m.Connections.Set(float64(count))
}

// RecordMessageDispatched records a dispatched control message by type and result status
func (m *Metrics) RecordMessageDispatched(messageType, status string) {
	m.MessagesDispatched.WithLabelValues(messageType, status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
