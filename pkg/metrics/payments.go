package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks order and reconciliation outcomes.
type PaymentMetrics struct {
	ordersCreated     *prometheus.CounterVec
	ordersConfirmed   prometheus.Counter
	reconcileOutcomes *prometheus.CounterVec
	rpcRetries        prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Pending orders created, labelled by currency.",
	}, []string{"currency"})
	ordersConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Orders confirmed against an on-chain signature.",
	})
	reconcileOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation attempts by outcome.",
	}, []string{"outcome"})
	rpcRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solana_rpc_retries_total",
		Help: "Retried Solana RPC calls.",
	})
	reg.MustRegister(ordersCreated, ordersConfirmed, reconcileOutcomes, rpcRetries)
	return &PaymentMetrics{
		ordersCreated:     ordersCreated,
		ordersConfirmed:   ordersConfirmed,
		reconcileOutcomes: reconcileOutcomes,
		rpcRetries:        rpcRetries,
	}
}

// IncOrderCreated counts a new pending order for the given currency.
func (p *PaymentMetrics) IncOrderCreated(currency string) {
	if p == nil || p.ordersCreated == nil {
		return
	}
	if currency == "" {
		currency = "unknown"
	}
	p.ordersCreated.WithLabelValues(currency).Inc()
}

// IncOrderConfirmed counts a confirmed order.
func (p *PaymentMetrics) IncOrderConfirmed() {
	if p == nil || p.ordersConfirmed == nil {
		return
	}
	p.ordersConfirmed.Inc()
}

// IncReconcileOutcome counts a reconciliation attempt by outcome label.
func (p *PaymentMetrics) IncReconcileOutcome(outcome string) {
	if p == nil || p.reconcileOutcomes == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	p.reconcileOutcomes.WithLabelValues(outcome).Inc()
}

// IncRPCRetry counts a retried RPC call.
func (p *PaymentMetrics) IncRPCRetry() {
	if p == nil || p.rpcRetries == nil {
		return
	}
	p.rpcRetries.Inc()
}
