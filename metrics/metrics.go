// Package metrics exposes Prometheus metrics for the voice front desk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts normalized inbound events by canonical kind.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_webhook_events_total",
			Help: "Total number of inbound webhook events by normalized kind",
		},
		[]string{"kind"},
	)

	// NormalizationFailures counts handled payload failures by class.
	NormalizationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_normalization_failures_total",
			Help: "Total number of webhook payloads rejected by the normalizer",
		},
		[]string{"class"},
	)

	// DialogueTransitions counts state machine arrivals by step.
	DialogueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_dialogue_transitions_total",
			Help: "Total number of dialogue state transitions by destination step",
		},
		[]string{"step"},
	)

	// AIRequestDuration observes responder round trips in seconds.
	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "frontdesk_ai_request_duration_seconds",
			Help:    "Duration of AI responder requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AIFailures counts responder failures that triggered the fallback path.
	AIFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_ai_failures_total",
			Help: "Total number of AI responder failures answered with fallback text",
		},
	)

	// ActiveConversations tracks live entries in the conversation store.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "frontdesk_active_conversations",
			Help: "Number of caller conversations currently held in memory",
		},
	)

	// AppointmentsBooked counts schedule commands accepted by the calendar.
	AppointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_appointments_booked_total",
			Help: "Total number of appointments booked through the call flow",
		},
	)
)
