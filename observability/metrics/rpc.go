package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	streams   prometheus.Gauge
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

// RPC returns the JSON-RPC server metrics.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ecdp",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ecdp",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency of JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ecdp",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter or the authenticator.",
			}, []string{"reason"}),
			streams: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ecdp",
				Subsystem: "rpc",
				Name:      "block_streams",
				Help:      "Open block subscriptions.",
			}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.latency, rpcRegistry.throttles, rpcRegistry.streams)
	})
	return rpcRegistry
}

// Observe records a handled request. A zero code is success.
func (m *RPCMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(label(method), strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(label(method)).Observe(duration.Seconds())
}

func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(label(reason)).Inc()
}

func (m *RPCMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

func (m *RPCMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}
