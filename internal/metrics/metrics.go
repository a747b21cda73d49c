package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed analyses and successful tool calls.
	OutcomeSuccess = "success"
	// OutcomeError labels aborted analyses and failed tool calls.
	OutcomeError = "error"
	// OutcomeDuplicate labels analyses skipped by event dedupe.
	OutcomeDuplicate = "duplicate"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen_rca",
			Name:      "analyses_total",
			Help:      "Total number of failure analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lumen_rca",
			Name:      "analysis_seconds",
			Help:      "End-to-end analysis latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen_rca",
			Name:      "tool_calls_total",
			Help:      "Evidence tool dispatches, partitioned by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	reasoningStepsTotal = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lumen_rca",
			Name:      "reasoning_steps",
			Help:      "Reasoning loop steps consumed per analysis.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)
)

// Register attaches lumen-rca collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		toolCallsTotal,
		reasoningStepsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one analysis outcome with its duration and step count.
func ObserveAnalysis(duration time.Duration, steps int, outcome string) {
	analysesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
	reasoningStepsTotal.Observe(float64(steps))
}

// CountDuplicate records an event skipped by dedupe.
func CountDuplicate() {
	analysesTotal.WithLabelValues(OutcomeDuplicate).Inc()
}

// ObserveToolCall records one evidence tool dispatch.
func ObserveToolCall(tool string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}
