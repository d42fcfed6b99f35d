// Package metrics exposes the gateway's Prometheus instrumentation: request
// counts and latency by provider/model, circuit breaker state, rate-limit
// rejections, and tool execution outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private Prometheus registry and the metric vectors the
// gateway records against during request handling.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec

	providerErrors *prometheus.CounterVec

	circuitState       *prometheus.GaugeVec
	circuitTransitions *prometheus.CounterVec

	fallbackAttempts *prometheus.CounterVec

	rateLimitRejections *prometheus.CounterVec

	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	sessionsActive prometheus.Gauge
}

// NewCollector builds a Collector with all metrics registered against a
// fresh private registry, so a test process can construct more than one
// without colliding on the default global registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "requests_total",
				Help:      "Total number of chat completion requests processed.",
			},
			[]string{"provider", "model", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "llm_gateway",
				Name:      "request_duration_seconds",
				Help:      "Chat completion request duration in seconds.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "tokens_total",
				Help:      "Total tokens processed, by provider/model/kind.",
			},
			[]string{"provider", "model", "kind"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "provider_errors_total",
				Help:      "Errors returned by upstream provider calls.",
			},
			[]string{"provider", "kind"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "llm_gateway",
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open).",
			},
			[]string{"name"},
		),
		circuitTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "circuit_transitions_total",
				Help:      "Circuit breaker state transitions.",
			},
			[]string{"name", "to"},
		),
		fallbackAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "fallback_attempts_total",
				Help:      "Fallback chain attempts by backend and outcome.",
			},
			[]string{"backend", "status"},
		),
		rateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"key"},
		),
		toolExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llm_gateway",
				Name:      "tool_executions_total",
				Help:      "Tool executions by name and outcome.",
			},
			[]string{"tool", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "llm_gateway",
				Name:      "tool_duration_seconds",
				Help:      "Tool execution duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "llm_gateway",
				Name:      "sessions_active",
				Help:      "Approximate number of sessions touched since startup.",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.providerErrors,
		c.circuitState,
		c.circuitTransitions,
		c.fallbackAttempts,
		c.rateLimitRejections,
		c.toolExecutions,
		c.toolDuration,
		c.sessionsActive,
	)

	return c
}

// RecordRequest records one completed chat completion request.
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration, totalTokens int) {
	c.requestsTotal.WithLabelValues(provider, model, status).Inc()
	c.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if totalTokens > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "total").Add(float64(totalTokens))
	}
}

// RecordTokens records prompt/completion token counts separately, for
// callers that have the split figures available.
func (c *Collector) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordProviderError records an error surfaced by an upstream provider call.
func (c *Collector) RecordProviderError(provider, kind string) {
	c.providerErrors.WithLabelValues(provider, kind).Inc()
}

// circuitStateValue maps a breaker's textual state to the gauge's numeric
// encoding (0=closed, 1=half_open, 2=open).
func circuitStateValue(state string) float64 {
	switch state {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitState sets the current gauge value for a named breaker and
// increments its transition counter. Intended to be driven directly off a
// breaker's transition hook (one call per actual state change, labeled
// with the state being entered), not off a poll of
// circuit.Registry.Snapshot() — polling would double-count transitions the
// gauge already reflects.
func (c *Collector) RecordCircuitState(name, state string) {
	c.circuitState.WithLabelValues(name).Set(circuitStateValue(state))
	c.circuitTransitions.WithLabelValues(name, state).Inc()
}

// RecordFallbackAttempt records one backend's outcome within a fallback
// chain execution, labeled by backend and "success"/"failure".
func (c *Collector) RecordFallbackAttempt(backend string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	c.fallbackAttempts.WithLabelValues(backend, status).Inc()
}

// RecordRateLimitRejection records a request rejected by the rate limiter.
func (c *Collector) RecordRateLimitRejection(key string) {
	c.rateLimitRejections.WithLabelValues(key).Inc()
}

// RecordToolExecution records one tool call outcome and its duration.
func (c *Collector) RecordToolExecution(tool, status string, duration time.Duration) {
	c.toolExecutions.WithLabelValues(tool, status).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordSessionTouched increments the active-sessions gauge. The gateway
// does not track session expiry here (that lives in the store's TTL), so
// this is a coarse "sessions created or resumed since startup" signal
// rather than a precise live count.
func (c *Collector) RecordSessionTouched() {
	c.sessionsActive.Inc()
}

// Registry returns the private Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler to mount at GET /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
