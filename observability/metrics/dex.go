package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type DexMetrics struct {
	swaps         *prometheus.CounterVec
	liquidityOps  *prometheus.CounterVec
	reserves      *prometheus.GaugeVec
	provisioning  *prometheus.CounterVec
	invariantFail prometheus.Counter
}

var (
	dexOnce     sync.Once
	dexRegistry *DexMetrics
)

func DEX() *DexMetrics {
	dexOnce.Do(func() {
		dexRegistry = &DexMetrics{
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_swaps_total",
				Help: "Count of executed swaps by supply currency, target currency and hop count.",
			}, []string{"supply", "target", "hops"}),
			liquidityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_liquidity_operations_total",
				Help: "Count of liquidity additions and removals by pair.",
			}, []string{"pair", "operation"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "dex_pool_reserve",
				Help: "Current pool reserve per pair and side.",
			}, []string{"pair", "side"}),
			provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_provisioning_transitions_total",
				Help: "Count of trading pair status transitions by target status.",
			}, []string{"pair", "status"}),
			invariantFail: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dex_invariant_failures_total",
				Help: "Count of constant-product checks that failed on engine-computed amounts.",
			}),
		}
		prometheus.MustRegister(
			dexRegistry.swaps,
			dexRegistry.liquidityOps,
			dexRegistry.reserves,
			dexRegistry.provisioning,
			dexRegistry.invariantFail,
		)
	})
	return dexRegistry
}

func (m *DexMetrics) RecordSwap(supply, target string, hops int) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(label(supply), label(target), strconv.Itoa(hops)).Inc()
}

func (m *DexMetrics) RecordLiquidity(pair, operation string) {
	if m == nil {
		return
	}
	m.liquidityOps.WithLabelValues(label(pair), label(operation)).Inc()
}

func (m *DexMetrics) SetReserves(pair string, reserve0, reserve1 *big.Int) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(label(pair), "0").Set(bigToFloat(reserve0))
	m.reserves.WithLabelValues(label(pair), "1").Set(bigToFloat(reserve1))
}

func (m *DexMetrics) RecordStatus(pair, status string) {
	if m == nil {
		return
	}
	m.provisioning.WithLabelValues(label(pair), label(status)).Inc()
}

func (m *DexMetrics) IncInvariantFailure() {
	if m == nil {
		return
	}
	m.invariantFail.Inc()
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
