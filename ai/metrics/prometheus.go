// Package metrics provides Prometheus metrics export for the turn pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "manas"
	subsystem = "assistant"
)

// Exporter records turn pipeline metrics. A nil *Exporter is valid and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	turns              *prometheus.CounterVec
	turnLatency        *prometheus.HistogramVec
	confidenceFallback prometheus.Counter
	handlerFailures    *prometheus.CounterVec
	beautify           *prometheus.CounterVec
	profileLearning    *prometheus.CounterVec
	ttsFailures        *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	llmTokens          *prometheus.CounterVec
	activeStreams      prometheus.Gauge
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
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
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turns_total",
			Help:      "Total number of processed turns",
		},
		[]string{"intent", "mode"},
	)

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"intent", "mode"},
	)

	e.confidenceFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "confidence_fallbacks_total",
			Help:      "Turns routed to general chat because classification confidence was below threshold",
		},
	)

	e.handlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handler_failures_total",
			Help:      "Handler failures absorbed into a friendly result",
		},
		[]string{"intent", "kind"},
	)

	e.beautify = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "beautify_total",
			Help:      "Message beautification attempts",
		},
		[]string{"status"},
	)

	e.profileLearning = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "profile_learning_total",
			Help:      "Background profile learning outcomes",
		},
		[]string{"status"},
	)

	e.ttsFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tts_failures_total",
			Help:      "Speech synthesis failures that degraded a turn to text",
		},
		[]string{"kind"},
	)

	e.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_lookups_total",
			Help:      "Collaborator cache lookups",
		},
		[]string{"cache", "result"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "llm_tokens_total",
			Help:      "LLM tokens consumed by streamed replies",
		},
		[]string{"token_type"},
	)

	e.activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_streams",
			Help:      "Number of streaming turns in flight",
		},
	)

	registry.MustRegister(
		e.turns,
		e.turnLatency,
		e.confidenceFallback,
		e.handlerFailures,
		e.beautify,
		e.profileLearning,
		e.ttsFailures,
		e.cacheLookups,
		e.llmTokens,
		e.activeStreams,
	)

	return e
}

// RecordTurn records a completed turn.
func (e *Exporter) RecordTurn(intent, mode string, latency time.Duration) {
	if e == nil {
		return
	}
	e.turns.WithLabelValues(intent, mode).Inc()
	e.turnLatency.WithLabelValues(intent, mode).Observe(latency.Seconds())
}

// RecordConfidenceFallback records a low-confidence reroute to general chat.
func (e *Exporter) RecordConfidenceFallback() {
	if e == nil {
		return
	}
	e.confidenceFallback.Inc()
}

// RecordHandlerFailure records a handler failure by intent and error kind.
func (e *Exporter) RecordHandlerFailure(intent, kind string) {
	if e == nil {
		return
	}
	e.handlerFailures.WithLabelValues(intent, kind).Inc()
}

// RecordBeautify records a beautification outcome: rewritten, skipped or failed.
func (e *Exporter) RecordBeautify(status string) {
	if e == nil {
		return
	}
	e.beautify.WithLabelValues(status).Inc()
}

// RecordProfileLearning records a learner outcome: success, failure, skipped or dropped.
func (e *Exporter) RecordProfileLearning(status string) {
	if e == nil {
		return
	}
	e.profileLearning.WithLabelValues(status).Inc()
}

// RecordTTSFailure records a speech failure that degraded a turn to text.
func (e *Exporter) RecordTTSFailure(kind string) {
	if e == nil {
		return
	}
	e.ttsFailures.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records a hit or miss against a named cache.
func (e *Exporter) RecordCacheLookup(cache string, hit bool) {
	if e == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	e.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordLLMTokens records token usage.
func (e *Exporter) RecordLLMTokens(prompt, completion int) {
	if e == nil {
		return
	}
	e.llmTokens.WithLabelValues("prompt").Add(float64(prompt))
	e.llmTokens.WithLabelValues("completion").Add(float64(completion))
}

// StreamStarted increments the active stream gauge and returns its decrement.
func (e *Exporter) StreamStarted() func() {
	if e == nil {
		return func() {}
	}
	e.activeStreams.Inc()
	return e.activeStreams.Dec
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
