// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landmarket_api_requests_total",
			Help: "Total number of marketplace API requests by call kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landmarket_api_request_duration_seconds",
			Help:    "Duration of marketplace API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ListingFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landmarket_listing_fetches_total",
			Help: "Listing query engine fetches by outcome (success, failed, stale)",
		},
		[]string{"outcome"},
	)

	EnquiryOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landmarket_enquiry_outcomes_total",
			Help: "Enquiry flow submissions by capture mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landmarket_session_events_total",
			Help: "Session lifecycle events (login, logout, restore)",
		},
		[]string{"event", "outcome"},
	)
)

// Label values shared by callers.
const (
	KindPublic        = "public"
	KindAuthenticated = "authenticated"

	OutcomeSuccess          = "success"
	OutcomeFailed           = "failed"
	OutcomeStale            = "stale"
	OutcomeSubmitted        = "submitted"
	OutcomeAlreadySubmitted = "already_submitted"
	OutcomeInvalid          = "invalid"
)
