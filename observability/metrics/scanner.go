package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ScannerMetrics struct {
	runs        *prometheus.CounterVec
	checked     prometheus.Counter
	submissions *prometheus.CounterVec
	duration    prometheus.Histogram
	passes      prometheus.Counter
}

var (
	scannerOnce     sync.Once
	scannerRegistry *ScannerMetrics
)

func Scanner() *ScannerMetrics {
	scannerOnce.Do(func() {
		scannerRegistry = &ScannerMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "offchain_scanner_runs_total",
				Help: "Count of liquidation scanner runs by outcome.",
			}, []string{"outcome"}),
			checked: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "offchain_scanner_positions_checked_total",
				Help: "Count of positions evaluated by the scanner.",
			}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "offchain_scanner_submissions_total",
				Help: "Count of unsigned calls submitted by kind and outcome.",
			}, []string{"kind", "outcome"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "offchain_scanner_run_duration_seconds",
				Help:    "Duration of a scanner run.",
				Buckets: prometheus.DefBuckets,
			}),
			passes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "offchain_scanner_full_passes_total",
				Help: "Count of completed passes over every collateral currency.",
			}),
		}
		prometheus.MustRegister(
			scannerRegistry.runs,
			scannerRegistry.checked,
			scannerRegistry.submissions,
			scannerRegistry.duration,
			scannerRegistry.passes,
		)
	})
	return scannerRegistry
}

func (m *ScannerMetrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(label(outcome)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *ScannerMetrics) AddChecked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.checked.Add(float64(n))
}

func (m *ScannerMetrics) RecordSubmission(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.submissions.WithLabelValues(label(kind), outcome).Inc()
}

func (m *ScannerMetrics) IncFullPass() {
	if m == nil {
		return
	}
	m.passes.Inc()
}
