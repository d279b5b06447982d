// Package metrics holds the latency histograms and operation counters
// every storage and transaction operation records. HdrHistogram gives
// accurate tail latencies cheaply; the prometheus counters make those
// same operations scrapeable.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates per-operation latency histograms (microseconds,
// 1us-10s range, 3 significant figures) and prometheus counters for
// storage and transaction operations.
type Metrics struct {
	mu         sync.Mutex
	histograms map[string]*hdrhistogram.Histogram

	OperationsTotal *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

// New constructs an empty Metrics. Registerer may be nil to skip
// prometheus registration (e.g. in tests).
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		histograms: make(map[string]*hdrhistogram.Histogram),
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vddb",
			Name:      "operations_total",
			Help:      "Count of storage/query operations by name.",
		}, []string{"operation"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vddb",
			Name:      "operation_errors_total",
			Help:      "Count of storage/query operation failures by name.",
		}, []string{"operation"}),
	}
	if registerer != nil {
		registerer.MustRegister(m.OperationsTotal, m.Errors)
	}
	return m
}

// Observe records how long op took and whether it failed.
func (m *Metrics) Observe(op string, d time.Duration, err error) {
	m.OperationsTotal.WithLabelValues(op).Inc()
	if err != nil {
		m.Errors.WithLabelValues(op).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histograms[op]
	if !ok {
		h = hdrhistogram.New(1, 10_000_000, 3)
		m.histograms[op] = h
	}
	_ = h.RecordValue(d.Microseconds())
}

// Snapshot returns the p50/p99 latency in microseconds recorded for
// op, or (0, 0) if op has never been observed.
func (m *Metrics) Snapshot(op string) (p50, p99 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histograms[op]
	if !ok {
		return 0, 0
	}
	return h.ValueAtQuantile(50), h.ValueAtQuantile(99)
}

// Track wraps fn, recording its duration and whether it returned an
// error under op.
func (m *Metrics) Track(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.Observe(op, time.Since(start), err)
	return err
}
