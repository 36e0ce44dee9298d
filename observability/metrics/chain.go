package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ChainMetrics struct {
	height       prometheus.Gauge
	txs          *prometheus.CounterVec
	blockSeconds prometheus.Histogram
	indexed      *prometheus.CounterVec
}

var (
	chainOnce     sync.Once
	chainRegistry *ChainMetrics
)

func Chain() *ChainMetrics {
	chainOnce.Do(func() {
		chainRegistry = &ChainMetrics{
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "chain_height",
				Help: "Height of the latest produced block.",
			}),
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "chain_transactions_total",
				Help: "Included transactions by outcome.",
			}, []string{"outcome"}),
			blockSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "chain_block_production_seconds",
				Help:    "Time spent producing a block.",
				Buckets: prometheus.DefBuckets,
			}),
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "chain_events_indexed_total",
				Help: "Events written by the indexer by sink and outcome.",
			}, []string{"sink", "outcome"}),
		}
		prometheus.MustRegister(chainRegistry.height, chainRegistry.txs, chainRegistry.blockSeconds, chainRegistry.indexed)
	})
	return chainRegistry
}

func (m *ChainMetrics) RecordBlock(height uint64, ok, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
	m.txs.WithLabelValues("success").Add(float64(ok))
	m.txs.WithLabelValues("failed").Add(float64(failed))
	m.blockSeconds.Observe(took.Seconds())
}

func (m *ChainMetrics) RecordIndexed(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.indexed.WithLabelValues(label(sink), outcome).Inc()
}
