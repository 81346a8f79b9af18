// Package metrics exposes Prometheus collectors for adapter operations.
package metrics

import (
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/prometheus/client_golang/prometheus"
)

// AdapterMetrics records one sample per filesystem operation. It satisfies
// objfs.Observer.
type AdapterMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewAdapterMetrics registers the adapter collectors on reg.
func NewAdapterMetrics(reg prometheus.Registerer) *AdapterMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bucketfs",
		Subsystem: "adapter",
		Name:      "bytes_total",
		Help:      "Total bytes written or read by adapter operations.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bucketfs",
		Subsystem: "adapter",
		Name:      "ops_total",
		Help:      "Total number of adapter operations by result.",
	}, []string{"op", "result"}) // result = "ok" | error kind
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bucketfs",
		Subsystem: "adapter",
		Name:      "op_duration_seconds",
		Help:      "Histogram of adapter operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	reg.MustRegister(bytes, ops, latency)

	return &AdapterMetrics{bytes: bytes, ops: ops, latency: latency}
}

// Observe records an operation. Failures are labelled with the kind of the
// innermost storage error.
func (m *AdapterMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = errs.RootKind(err).String()
	}
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}
