package resilience

import "github.com/prometheus/client_golang/prometheus"

const subsystem = "resilience"

// Collectors are labelled by target, e.g. "backend".
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "breaker_state",
		Help:      "Breaker state per target (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "breaker_opened_total",
		Help:      "Times a breaker tripped open.",
	}, []string{"target"})

	RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "retries_total",
		Help:      "Repeated attempts of safe upstream requests.",
	}, []string{"target"})
)

// Collectors returns every collector of the package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal, RetriesTotal}
}
