package middleware

import (
	"context"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

type metricsMiddleware struct {
	registry *core.MetricRegistry
}

// Metrics returns middleware that records dispatch counts and durations
// into registry, grounded on
// Jeeves-Cluster-Organization-jeeves-core/coreengine/observability/metrics.go's
// RecordPipelineExecution (a counter vec plus a histogram vec, both keyed by
// status) rather than the teacher's pluggable MetricsCollector interface.
func Metrics(registry *core.MetricRegistry) core.Middleware {
	return &metricsMiddleware{registry: registry}
}

func (m *metricsMiddleware) Stage() core.Stage { return core.PostProcessing }

func (m *metricsMiddleware) Invoke(ctx context.Context, msg *core.Message, mctx core.MessageContext, next core.NextFunc) (core.Result, error) {
	counter := m.registry.LabeledCounter(
		"dispatchkit_dispatch_total",
		"Total number of dispatches processed",
		"kind", "status",
	)
	histogram := m.registry.Histogram(
		"dispatchkit_dispatch_duration_seconds",
		"Dispatch duration in seconds",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		"kind",
	)

	start := time.Now()
	res, err := next(ctx, msg, mctx)
	elapsed := time.Since(start)

	status := "success"
	if err != nil || !res.Succeeded() {
		status = "error"
	}
	counter.WithLabelValues(msg.Kind.String(), status).Inc()
	histogram.WithLabelValues(msg.Kind.String()).Observe(elapsed.Seconds())

	return res, err
}
