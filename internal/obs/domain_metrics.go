package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutStepTotal counts checkout step transition attempts.
	CheckoutStepTotal *prometheus.CounterVec
	// StockValidationTotal counts stock validation outcomes, including discarded stale answers.
	StockValidationTotal *prometheus.CounterVec
	// OrderSubmissionTotal counts order submissions by payment method and outcome.
	OrderSubmissionTotal *prometheus.CounterVec
	// PaymentPreferenceTotal counts gateway preference creation outcomes.
	PaymentPreferenceTotal *prometheus.CounterVec
	// PaymentResumptionTotal counts redirect resumptions by collection status.
	PaymentResumptionTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests rejected by a rate limit rule.
	RateLimitedTotal *prometheus.CounterVec
	// LiveSessions reports sessions currently held in memory.
	LiveSessions prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutStepTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_step_transition_total",
			Help:      "Count of checkout step transitions by outcome.",
		}, []string{"from", "to", "result"})
		StockValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_validation_total",
			Help:      "Count of stock validation round-trips by outcome.",
		}, []string{"result"})
		OrderSubmissionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submission_total",
			Help:      "Count of order submissions by payment method and outcome.",
		}, []string{"method", "result"})
		PaymentPreferenceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_preference_total",
			Help:      "Count of payment gateway preference requests by outcome.",
		}, []string{"gateway", "result"})
		PaymentResumptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_resumption_total",
			Help:      "Count of payment redirect resumptions by collection status.",
		}, []string{"status"})
		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by rate limiting, by rule scope.",
		}, []string{"scope"})
		LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Number of shopper sessions held in memory.",
		})

		CheckoutStepTotal = register(reg, CheckoutStepTotal)
		StockValidationTotal = register(reg, StockValidationTotal)
		OrderSubmissionTotal = register(reg, OrderSubmissionTotal)
		PaymentPreferenceTotal = register(reg, PaymentPreferenceTotal)
		PaymentResumptionTotal = register(reg, PaymentResumptionTotal)
		RateLimitedTotal = register(reg, RateLimitedTotal)
		LiveSessions = register[prometheus.Gauge](reg, LiveSessions)
	})
}

// Inc increments vec when metrics are registered; unregistered collectors are skipped.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// SetLiveSessions records the in-memory session count.
func SetLiveSessions(n int) {
	if LiveSessions == nil {
		return
	}
	LiveSessions.Set(float64(n))
}
