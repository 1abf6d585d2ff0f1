package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// relayMessages counts relay decisions by outcome
	// (delivered, queued, ignored, error).
	relayMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Messages seen by the relay dispatcher, by outcome.",
		},
		[]string{"outcome"},
	)

	// roomJoins counts join attempts by result
	// (joined, not_found, closed, forbidden, error).
	roomJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_joins_total",
			Help: "Room join attempts, by result.",
		},
		[]string{"result"},
	)

	// lifecycleTransitions counts successful status changes by target status.
	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Request status transitions, by target status.",
		},
		[]string{"to"},
	)
)

func init() {
	prometheus.MustRegister(relayMessages, roomJoins, lifecycleTransitions)
}

// CountTransition records a status change made outside the lifecycle
// controller (the SLA sweepers).
func CountTransition(to string) {
	lifecycleTransitions.WithLabelValues(to).Inc()
}
