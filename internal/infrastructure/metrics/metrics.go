package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequestsTotal is recorded by the delivery middleware.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	},
	[]string{"route", "method", "status"},
)

type CheckoutMetrics struct {
	TransactionsCreatedTotal  prometheus.CounterVec
	TransactionsSettledTotal  prometheus.CounterVec
	TransactionsRefundedTotal prometheus.CounterVec
	TransactionsFailedTotal   prometheus.CounterVec

	SettlementAmountTotal prometheus.CounterVec
	RefundAmountTotal     prometheus.CounterVec

	SettlementDuration prometheus.HistogramVec

	ReconcilerPollsTotal      prometheus.CounterVec
	ReconcilerClaimedGauge    prometheus.Gauge
	ReconciliationAlertsTotal prometheus.Counter
}

func NewCheckoutMetrics() *CheckoutMetrics {
	return &CheckoutMetrics{
		TransactionsCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_transactions_created_total",
				Help: "Total transactions created, by service kind and funding method",
			},
			[]string{"service_kind", "funding_method"},
		),

		TransactionsSettledTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_transactions_settled_total",
				Help: "Total transactions that reached SETTLED",
			},
			[]string{"service_kind", "funding_method"},
		),

		TransactionsRefundedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_transactions_refunded_total",
				Help: "Total transactions refunded, by failure code",
			},
			[]string{"service_kind", "reason"},
		),

		TransactionsFailedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_transactions_failed_total",
				Help: "Total transactions failed before funds moved, by failure code",
			},
			[]string{"service_kind", "reason"},
		),

		SettlementAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_settlement_amount_minor_total",
				Help: "Total settled amount in minor units",
			},
			[]string{"service_kind"},
		),

		RefundAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_refund_amount_minor_total",
				Help: "Total refunded amount in minor units",
			},
			[]string{"service_kind"},
		),

		SettlementDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_settlement_duration_seconds",
				Help:    "Time from intent to terminal state",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"service_kind", "final_state"},
		),

		ReconcilerPollsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_polls_total",
				Help: "Reconciliation polls, by outcome",
			},
			[]string{"outcome"},
		),

		ReconcilerClaimedGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reconciler_claimed_transactions",
				Help: "Transactions claimed in the current sweep",
			},
		),

		ReconciliationAlertsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reconciliation_alerts_total",
				Help: "Late provider success reported for already-terminal transactions",
			},
		),
	}
}

func (m *CheckoutMetrics) RecordCreated(serviceKind, fundingMethod string) {
	m.TransactionsCreatedTotal.WithLabelValues(serviceKind, fundingMethod).Inc()
}

func (m *CheckoutMetrics) RecordSettled(serviceKind, fundingMethod string, amountMinor int64, durationSeconds float64) {
	m.TransactionsSettledTotal.WithLabelValues(serviceKind, fundingMethod).Inc()
	m.SettlementAmountTotal.WithLabelValues(serviceKind).Add(float64(amountMinor))
	m.SettlementDuration.WithLabelValues(serviceKind, "SETTLED").Observe(durationSeconds)
}

func (m *CheckoutMetrics) RecordRefunded(serviceKind, reason string, amountMinor int64, durationSeconds float64) {
	m.TransactionsRefundedTotal.WithLabelValues(serviceKind, reason).Inc()
	m.RefundAmountTotal.WithLabelValues(serviceKind).Add(float64(amountMinor))
	m.SettlementDuration.WithLabelValues(serviceKind, "REFUNDED").Observe(durationSeconds)
}

func (m *CheckoutMetrics) RecordFailed(serviceKind, reason string) {
	m.TransactionsFailedTotal.WithLabelValues(serviceKind, reason).Inc()
}

func (m *CheckoutMetrics) RecordPoll(outcome string) {
	m.ReconcilerPollsTotal.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) RecordAlert() {
	m.ReconciliationAlertsTotal.Inc()
}
