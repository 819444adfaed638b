package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backend metrics
	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cratex_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds by endpoint",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok"/"rejected"/"unavailable"/"invalid"
	)

	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratex_simulation_fallback_total",
			Help: "Operations served by the simulation engine because the backend was unavailable",
		},
		[]string{"operation"},
	)

	// Pipeline metrics
	stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratex_stage_transitions_total",
			Help: "Pipeline stage transitions by stage",
		},
		[]string{"stage"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratex_runs_total",
			Help: "Pipeline runs by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "dry_run"/"execute"/"rollback"/"history_rollback"
	)

	// Assistant metrics
	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cratex_rate_limit_rejections_total",
			Help: "Assistant requests rejected by the sliding window limiter",
		},
	)

	agentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cratex_agent_requests_total",
			Help: "Assistant model requests by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	agentPacingWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cratex_agent_pacing_wait_seconds",
			Help:    "Time spent waiting on per-model pacing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger}
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBackendRequest records one backend round trip
func (c *Collector) RecordBackendRequest(endpoint, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	backendRequestDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// RecordFallback counts an operation served by the simulation engine
func (c *Collector) RecordFallback(operation string) {
	if c == nil {
		return
	}
	fallbackTotal.WithLabelValues(operation).Inc()
	c.logger.Debug("Backend unavailable, using simulation", "operation", operation)
}

// RecordStage counts a transition into stage
func (c *Collector) RecordStage(stage string) {
	if c == nil {
		return
	}
	stageTransitions.WithLabelValues(stage).Inc()
}

// RecordRun counts a finished run
func (c *Collector) RecordRun(kind string, success bool) {
	if c == nil {
		return
	}
	runsTotal.WithLabelValues(kind, outcome(success)).Inc()
}

// RecordRateLimitRejection counts a request refused by the sliding window
func (c *Collector) RecordRateLimitRejection() {
	if c == nil {
		return
	}
	rateLimitRejections.Inc()
}

// RecordAgentRequest counts one model request
func (c *Collector) RecordAgentRequest(model string, success bool) {
	if c == nil {
		return
	}
	agentRequests.WithLabelValues(model, outcome(success)).Inc()
}

// RecordPacingWait records time spent waiting for a model's pacing limiter
func (c *Collector) RecordPacingWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	agentPacingWait.WithLabelValues(model).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
