package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lancepay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lancepay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lancepay_transfers_total",
			Help: "Total number of internal transfers",
		},
		[]string{"status"},
	)

	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lancepay_deposits_total",
			Help: "Total number of deposit orders by provider and terminal status",
		},
		[]string{"provider", "status"},
	)

	ReconciliationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lancepay_reconciliation_outcomes_total",
			Help: "Total reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lancepay_withdrawals_total",
			Help: "Total number of withdrawal requests by status",
		},
		[]string{"status"},
	)

	CreditsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lancepay_wallet_credits_deduped_total",
			Help: "Ledger credits suppressed by reference id de-duplication",
		},
	)

	ExchangeRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lancepay_exchange_rate",
			Help: "Current canonical to quote exchange rate",
		},
		[]string{"quote"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransfer(status string) {
	TransfersTotal.WithLabelValues(status).Inc()
}

func RecordDeposit(provider, status string) {
	DepositsTotal.WithLabelValues(provider, status).Inc()
}

func RecordReconciliation(outcome string) {
	ReconciliationOutcomes.WithLabelValues(outcome).Inc()
}

func RecordWithdrawal(status string) {
	WithdrawalsTotal.WithLabelValues(status).Inc()
}

func RecordExchangeRate(quote string, value float64) {
	ExchangeRate.WithLabelValues(quote).Set(value)
}
