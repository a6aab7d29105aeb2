// Package observability carries the only telemetry the core emits:
// per-store-call latency with a slow-query threshold.
package observability

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultSlowThreshold = 500 * time.Millisecond

// QueryTimer records store-call durations labeled (operation, partitionTag)
// and logs calls that cross the slow threshold.
type QueryTimer struct {
	durations *prometheus.HistogramVec
	slow      *prometheus.CounterVec
	threshold time.Duration
	logger    *slog.Logger
}

func NewQueryTimer(registerer prometheus.Registerer, threshold time.Duration, logger *slog.Logger) *QueryTimer {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	timer := &QueryTimer{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Latency of wide-key store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "partition_tag"}),
		slow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_slow_queries_total",
			Help: "Store operations slower than the configured threshold.",
		}, []string{"operation", "partition_tag"}),
		threshold: threshold,
		logger:    logger,
	}
	if registerer != nil {
		registerer.MustRegister(timer.durations, timer.slow)
	}
	return timer
}

func (t *QueryTimer) Observe(operation, partitionTag string, elapsed time.Duration) {
	t.durations.WithLabelValues(operation, partitionTag).Observe(elapsed.Seconds())
	if elapsed >= t.threshold {
		t.slow.WithLabelValues(operation, partitionTag).Inc()
		t.logger.Warn("slow store operation",
			"event", "store_slow_query",
			"module", "event-graph",
			"layer", "adapter",
			"operation", operation,
			"partition_tag", partitionTag,
			"elapsed_ms", elapsed.Milliseconds(),
			"threshold_ms", t.threshold.Milliseconds(),
		)
	}
}

// Track returns a stop func for defer-style timing.
func (t *QueryTimer) Track(operation, partitionTag string) func() {
	started := time.Now()
	return func() {
		t.Observe(operation, partitionTag, time.Since(started))
	}
}
