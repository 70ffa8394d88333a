// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tms_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tms_token_refreshes_total",
		Help: "Access token renewals by outcome.",
	}, []string{"outcome"})

	TicketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tms_ticket_transitions_total",
		Help: "Ticket status changes.",
	}, []string{"from", "to", "cause"})

	CASRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tms_ticket_cas_retries_total",
		Help: "Ticket writes retried after losing a version race.",
	})

	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tms_ai_requests_total",
		Help: "Generative AI calls by kind and outcome.",
	}, []string{"kind", "outcome"})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tms_sessions_swept_total",
		Help: "Expired or revoked session rows deleted by the sweeper.",
	})
)

func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
