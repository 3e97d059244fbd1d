package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusbook",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"status"},
	)

	signatoryDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusbook",
			Name:      "signatory_decisions_total",
			Help:      "Signatory decisions by role and decision.",
		},
		[]string{"role", "decision"},
	)

	droppedSignatories = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campusbook",
			Name:      "dropped_signatories_total",
			Help:      "Signatory roles skipped because no address could be resolved.",
		},
	)

	linkThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campusbook",
			Name:      "approval_link_throttled_total",
			Help:      "Public approval-link requests rejected by the rate guard.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingTransitions,
			signatoryDecisions,
			droppedSignatories,
			linkThrottled,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition counts a booking moving into the given status.
func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncDecision counts a signatory decision.
func IncDecision(role, decision string) {
	signatoryDecisions.WithLabelValues(role, decision).Inc()
}

// IncDroppedSignatory counts a role silently skipped during promotion.
func IncDroppedSignatory() {
	droppedSignatories.Inc()
}

// IncLinkThrottled counts a throttled approval-link request.
func IncLinkThrottled() {
	linkThrottled.Inc()
}
