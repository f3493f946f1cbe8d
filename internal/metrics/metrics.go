// Package metrics exposes rebalancer counters and gauges for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "basket"

// Failure kinds used as label values.
const (
	FailureFetch  = "fetch"
	FailureBuild  = "build"
	FailureSubmit = "submit"
	FailureOther  = "other"
)

// Metrics rebalancer instrumentation on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	cycles           prometheus.Counter
	failures         *prometheus.CounterVec
	bundlesSubmitted prometheus.Counter
	droppedSwaps     prometheus.Counter
	portfolioValue   prometheus.Gauge
	allocation       *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total rebalance cycles started.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Total rebalance cycles aborted, by failure kind.",
		}, []string{"kind"}),
		bundlesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_submitted_total",
			Help:      "Total bundles accepted by the relay.",
		}),
		droppedSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_dropped_total",
			Help:      "Total swaps left out of a bundle because of the size limit.",
		}),
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Last observed portfolio value in the valuation currency.",
		}),
		allocation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "asset_allocation",
			Help:      "Last observed fraction of portfolio value held in each asset.",
		}, []string{"asset"}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.failures,
		m.bundlesSubmitted,
		m.droppedSwaps,
		m.portfolioValue,
		m.allocation,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CycleStarted counts a cycle.
func (m *Metrics) CycleStarted() {
	m.cycles.Inc()
}

// CycleFailed counts an aborted cycle.
func (m *Metrics) CycleFailed(kind string) {
	m.failures.WithLabelValues(kind).Inc()
}

// BundleSubmitted counts an accepted bundle.
func (m *Metrics) BundleSubmitted() {
	m.bundlesSubmitted.Inc()
}

// SwapsDropped counts swaps cut by the bundle size limit.
func (m *Metrics) SwapsDropped(n int) {
	if n > 0 {
		m.droppedSwaps.Add(float64(n))
	}
}

// ObservePortfolio records total value and per-asset allocation.
func (m *Metrics) ObservePortfolio(total decimal.Decimal, allocations map[string]decimal.Decimal) {
	m.portfolioValue.Set(total.InexactFloat64())
	for asset, fraction := range allocations {
		m.allocation.WithLabelValues(asset).Set(fraction.InexactFloat64())
	}
}
