package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CDPMetrics struct {
	liquidations *prometheus.CounterVec
	strategyFail *prometheus.CounterVec
	settlements  *prometheus.CounterVec
	closes       *prometheus.CounterVec
	adjustments  *prometheus.CounterVec
	exchangeRate *prometheus.GaugeVec
	totalDebit   *prometheus.GaugeVec
}

var (
	cdpOnce     sync.Once
	cdpRegistry *CDPMetrics
)

func CDP() *CDPMetrics {
	cdpOnce.Do(func() {
		cdpRegistry = &CDPMetrics{
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_liquidations_total",
				Help: "Count of unsafe positions liquidated by collateral and winning strategy.",
			}, []string{"collateral", "strategy"}),
			strategyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_liquidation_strategy_failures_total",
				Help: "Count of liquidation strategy attempts that fell through to the next strategy.",
			}, []string{"collateral", "strategy"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_settlements_total",
				Help: "Count of positions settled after emergency shutdown.",
			}, []string{"collateral"}),
			closes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_dex_closes_total",
				Help: "Count of positions closed through the DEX.",
			}, []string{"collateral"}),
			adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_position_adjustments_total",
				Help: "Count of position adjustments by collateral and kind.",
			}, []string{"collateral", "kind"}),
			exchangeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cdp_debit_exchange_rate",
				Help: "Current debit exchange rate per collateral.",
			}, []string{"collateral"}),
			totalDebit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cdp_total_debit_units",
				Help: "Outstanding debit units per collateral.",
			}, []string{"collateral"}),
		}
		prometheus.MustRegister(
			cdpRegistry.liquidations,
			cdpRegistry.strategyFail,
			cdpRegistry.settlements,
			cdpRegistry.closes,
			cdpRegistry.adjustments,
			cdpRegistry.exchangeRate,
			cdpRegistry.totalDebit,
		)
	})
	return cdpRegistry
}

func (m *CDPMetrics) RecordLiquidation(collateral, strategy string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(label(collateral), label(strategy)).Inc()
}

func (m *CDPMetrics) RecordStrategyFailure(collateral, strategy string) {
	if m == nil {
		return
	}
	m.strategyFail.WithLabelValues(label(collateral), label(strategy)).Inc()
}

func (m *CDPMetrics) RecordSettlement(collateral string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(label(collateral)).Inc()
}

func (m *CDPMetrics) RecordClose(collateral string) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(label(collateral)).Inc()
}

func (m *CDPMetrics) RecordAdjustment(collateral, kind string) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(label(collateral), label(kind)).Inc()
}

func (m *CDPMetrics) SetExchangeRate(collateral string, rate float64) {
	if m == nil {
		return
	}
	m.exchangeRate.WithLabelValues(label(collateral)).Set(rate)
}

func (m *CDPMetrics) SetTotalDebit(collateral string, debit *big.Int) {
	if m == nil {
		return
	}
	m.totalDebit.WithLabelValues(label(collateral)).Set(bigToFloat(debit))
}
