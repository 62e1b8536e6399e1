// Package metrics provides Prometheus instrumentation for the sentinel
// daemon. All metric collectors are registered via the Init function and
// exposed through the Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dskow/resilience-core/pkg/breaker"
)

var (
	// BreakerState tracks the current state of each circuit breaker
	// (0 = closed, 1 = open, 2 = half-open).
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// BreakerTransitions counts state transitions by breaker, edge, and reason.
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to", "reason"},
	)

	// ProbesTotal counts completed dependency probes by outcome.
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_probes_total",
			Help: "Total completed dependency probes",
		},
		[]string{"dependency", "outcome"},
	)

	// ProbeDuration observes probe latency in seconds by dependency.
	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_probe_duration_seconds",
			Help:    "Dependency probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dependency"},
	)

	// ProbeSkips counts probe ticks that did not run, by cause
	// (circuit-open or rate-limited).
	ProbeSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_probe_skips_total",
			Help: "Total probe ticks skipped without running",
		},
		[]string{"dependency", "cause"},
	)

	// AdminRequests counts admin API requests by endpoint and status code.
	AdminRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_admin_requests_total",
			Help: "Total admin API requests",
		},
		[]string{"endpoint", "status"},
	)
)

// Init registers all metric collectors with the default Prometheus registry.
// Must be called once at startup before handling requests.
func Init() {
	prometheus.MustRegister(
		BreakerState,
		BreakerTransitions,
		ProbesTotal,
		ProbeDuration,
		ProbeSkips,
		AdminRequests,
	)
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StateValue maps a breaker state to its gauge value.
func StateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateOpen:
		return 1
	case breaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// BreakerListener returns a listener that keeps the state gauge and
// transition counter current. Safe to register on breakers and groups.
func BreakerListener() breaker.Listener {
	return func(name string, from, to breaker.State, reason breaker.Reason) {
		BreakerState.WithLabelValues(name).Set(StateValue(to))
		BreakerTransitions.WithLabelValues(name, from.String(), to.String(), string(reason)).Inc()
	}
}
