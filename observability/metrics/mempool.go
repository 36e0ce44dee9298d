package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MempoolMetrics struct {
	size     prometheus.Gauge
	admitted *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var (
	mempoolOnce     sync.Once
	mempoolRegistry *MempoolMetrics
)

func Mempool() *MempoolMetrics {
	mempoolOnce.Do(func() {
		mempoolRegistry = &MempoolMetrics{
			size: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "mempool_size",
				Help: "Number of calls waiting for inclusion.",
			}),
			admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mempool_admitted_total",
				Help: "Count of calls admitted by kind.",
			}, []string{"kind"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mempool_rejected_total",
				Help: "Count of calls rejected by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(mempoolRegistry.size, mempoolRegistry.admitted, mempoolRegistry.rejected)
	})
	return mempoolRegistry
}

func (m *MempoolMetrics) SetSize(n int) {
	if m == nil {
		return
	}
	m.size.Set(float64(n))
}

func (m *MempoolMetrics) RecordAdmitted(kind string) {
	if m == nil {
		return
	}
	m.admitted.WithLabelValues(label(kind)).Inc()
}

func (m *MempoolMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(label(reason)).Inc()
}
