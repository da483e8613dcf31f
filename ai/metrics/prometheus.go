// Package metrics provides Prometheus metrics export for the assistant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports assistant metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	turns            *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	bookingOutcomes  *prometheus.CounterVec
	retrievalLatency prometheus.Histogram
	retrievalChunks  prometheus.Histogram
	llmTokens        *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a metrics exporter with all collectors registered.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neobook",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total number of handled turns",
		},
		[]string{"intent", "outcome"},
	)

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neobook",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Turn handling latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"intent"},
	)

	e.bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neobook",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Total booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	e.retrievalLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neobook",
			Subsystem: "knowledge",
			Name:      "retrieval_latency_seconds",
			Help:      "Knowledge retrieval latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.retrievalChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neobook",
			Subsystem: "knowledge",
			Name:      "retrieval_chunks",
			Help:      "Number of chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neobook",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"token_type"},
	)

	e.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "neobook",
			Subsystem: "dialogue",
			Name:      "sessions_active",
			Help:      "Number of sessions with in-flight turns",
		},
	)

	registry.MustRegister(
		e.turns,
		e.turnLatency,
		e.bookingOutcomes,
		e.retrievalLatency,
		e.retrievalChunks,
		e.llmTokens,
		e.activeSessions,
	)
	return e
}

// ObserveTurn records one handled turn.
func (e *Exporter) ObserveTurn(intent, outcome string, duration time.Duration) {
	e.turns.WithLabelValues(intent, outcome).Inc()
	e.turnLatency.WithLabelValues(intent).Observe(duration.Seconds())
}

// CountBookingOutcome records one booking attempt. Outcome is one of
// committed, conflict, no_availability, ambiguous, not_found, error.
func (e *Exporter) CountBookingOutcome(outcome string) {
	e.bookingOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRetrieval records one knowledge retrieval.
func (e *Exporter) ObserveRetrieval(duration time.Duration, chunks int) {
	e.retrievalLatency.Observe(duration.Seconds())
	e.retrievalChunks.Observe(float64(chunks))
}

// CountTokens records LLM token usage.
func (e *Exporter) CountTokens(promptTokens, completionTokens int) {
	e.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	e.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// TurnStarted marks a session turn in flight.
func (e *Exporter) TurnStarted() {
	e.activeSessions.Inc()
}

// TurnFinished marks a session turn complete.
func (e *Exporter) TurnFinished() {
	e.activeSessions.Dec()
}

// Handler returns the scrape endpoint handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
