package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment reconciliation flow.
type PaymentMetrics struct {
	confirmed         *prometheus.CounterVec
	duplicates        *prometheus.CounterVec
	stockShortfalls   prometheus.Counter
	confirmationsSent prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Orders transitioned to paid, by notification channel.",
	}, []string{"channel"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Confirmations received for orders already paid.",
	}, []string{"channel"})
	stockShortfalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_stock_shortfall_total",
		Help: "Order lines whose paid quantity exceeded remaining stock.",
	})
	confirmationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_confirmations_sent_total",
		Help: "Order confirmation notifications dispatched.",
	})
	reg.MustRegister(confirmed, duplicates, stockShortfalls, confirmationsSent)
	return &PaymentMetrics{
		confirmed:         confirmed,
		duplicates:        duplicates,
		stockShortfalls:   stockShortfalls,
		confirmationsSent: confirmationsSent,
	}
}

// IncConfirmed increments the confirmed counter for the given channel.
func (p *PaymentMetrics) IncConfirmed(channel string) {
	if p == nil || p.confirmed == nil {
		return
	}
	p.confirmed.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncDuplicate increments the duplicate-confirmation counter.
func (p *PaymentMetrics) IncDuplicate(channel string) {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncStockShortfall counts a clamped stock decrement.
func (p *PaymentMetrics) IncStockShortfall() {
	if p == nil || p.stockShortfalls == nil {
		return
	}
	p.stockShortfalls.Inc()
}

// IncConfirmationSent counts a dispatched order confirmation.
func (p *PaymentMetrics) IncConfirmationSent() {
	if p == nil || p.confirmationsSent == nil {
		return
	}
	p.confirmationsSent.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
