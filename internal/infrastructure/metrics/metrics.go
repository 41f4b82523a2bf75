// Package metrics exposes the bot's Prometheus series. They are registered
// with the default registry in init() and served at /metrics by the web server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threshold_bot_orders_total",
			Help: "Market orders placed",
		},
		[]string{"asset", "side"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threshold_bot_state_transitions_total",
			Help: "Percentage state changes",
		},
		[]string{"asset", "to"},
	)

	adjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threshold_bot_reference_adjustments_total",
			Help: "Reference price renewals and adjustments",
		},
		[]string{"asset", "kind"}, // kind: renew|falling|rising
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threshold_bot_exchange_retries_total",
			Help: "Exchange calls retried after a transient failure",
		},
		[]string{"op"},
	)

	percentage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threshold_bot_asset_percentage",
			Help: "Percent move of the asset against its reference price",
		},
		[]string{"asset"},
	)

	portfolioShare = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threshold_bot_portfolio_percentage",
			Help: "Share of the portfolio held in the asset",
		},
		[]string{"asset"},
	)

	openLots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threshold_bot_open_lots",
			Help: "Open purchase lots per asset",
		},
		[]string{"asset"},
	)

	portfolioTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "threshold_bot_portfolio_usd",
			Help: "Total portfolio value in USD",
		},
	)

	tickerPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threshold_bot_ticker_price",
			Help: "Last price seen on the ticker feed",
		},
		[]string{"product"},
	)

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "threshold_bot_ticks_total",
			Help: "Polling ticks completed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		orders,
		transitions,
		adjustments,
		retries,
		percentage,
		portfolioShare,
		openLots,
		portfolioTotal,
		tickerPrice,
		ticks,
	)
}

func ObserveOrder(asset, side string) {
	orders.WithLabelValues(asset, side).Inc()
}

func ObserveTransition(asset, to string) {
	transitions.WithLabelValues(asset, to).Inc()
}

func ObserveAdjustment(asset, kind string) {
	adjustments.WithLabelValues(asset, kind).Inc()
}

func ObserveRetry(op string) {
	retries.WithLabelValues(op).Inc()
}

// SetAsset publishes the per-asset gauges after a tick.
func SetAsset(asset string, pct, share float64, lots int) {
	percentage.WithLabelValues(asset).Set(pct)
	portfolioShare.WithLabelValues(asset).Set(share)
	openLots.WithLabelValues(asset).Set(float64(lots))
}

func SetPortfolioTotal(v float64) {
	portfolioTotal.Set(v)
}

func SetTickerPrice(product string, price float64) {
	tickerPrice.WithLabelValues(product).Set(price)
}

func IncTicks() {
	ticks.Inc()
}
