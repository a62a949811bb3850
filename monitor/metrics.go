// Package monitor exposes Prometheus metrics for the relay pipeline.
package monitor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Relay requests by model, stream flag and status code.",
	}, []string{"model", "stream", "status"})

	relayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llm_gateway",
		Subsystem: "relay",
		Name:      "request_duration_seconds",
		Help:      "End-to-end relay latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"model", "stream"})

	relayTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Subsystem: "relay",
		Name:      "tokens_total",
		Help:      "Tokens accounted per model and direction.",
	}, []string{"model", "direction"})

	relayThrottledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Subsystem: "relay",
		Name:      "throttled_total",
		Help:      "Requests rejected by quota admission.",
	}, []string{"model", "dimension"})
)

func RecordRelayRequest(model string, stream bool, statusCode int, startTime time.Time) {
	streamLabel := strconv.FormatBool(stream)
	relayRequestsTotal.WithLabelValues(model, streamLabel, strconv.Itoa(statusCode)).Inc()
	relayRequestDuration.WithLabelValues(model, streamLabel).Observe(time.Since(startTime).Seconds())
}

func RecordTokens(model string, promptTokens, completionTokens int) {
	relayTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	relayTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordThrottled counts a quota rejection; dimension is "rpm" or "tpm".
func RecordThrottled(model, dimension string) {
	relayThrottledTotal.WithLabelValues(model, dimension).Inc()
}
