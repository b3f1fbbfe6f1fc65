// Package metrics provides Prometheus metrics for the identity context service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryFailuresTotal counts host CLI queries that failed and degraded to defaults
	QueryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_query_failures_total",
			Help: "Total number of host CLI queries that failed and fell back to default values",
		},
		[]string{"source"}, // account, extensions, host_version, interfaces
	)

	// ParseFailuresTotal counts values that could not be parsed
	ParseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_parse_failures_total",
			Help: "Total number of values that failed to parse and fell back to defaults",
		},
		[]string{"kind"}, // version, hex_digit
	)

	// CohortFallbackTotal counts cohort assignments that used the time-seeded fallback
	CohortFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_cohort_fallback_total",
			Help: "Total number of cohort assignments that used the time-seeded random fallback",
		},
	)

	// RefreshesTotal counts context refresh cycles
	RefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_refreshes_total",
			Help: "Total number of identity context refresh cycles",
		},
	)

	// LastRefreshTimestamp records when the context was last refreshed
	LastRefreshTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "identity_last_refresh_timestamp_seconds",
			Help: "Unix timestamp of the last identity context refresh",
		},
	)

	// PayloadValidationErrorsTotal counts envelopes rejected by schema validation
	PayloadValidationErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_payload_validation_errors_total",
			Help: "Total number of telemetry envelopes that failed JSON Schema validation",
		},
	)
)
