package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_queued_total",
			Help: "Total number of notifications queued",
		},
		[]string{"event_kind"},
	)

	EmailSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_send_total",
			Help: "Total number of provider send attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	EmailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_seconds",
			Help:    "Duration of provider send calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Tiered cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	SweepRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_records_total",
			Help: "Notifications processed by the delivery sweep by outcome",
		},
		[]string{"outcome"},
	)

	TokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_validations_total",
			Help: "Verification token validations by result",
		},
		[]string{"result"},
	)
)

// ObserveCache adapts CacheLookups to the cache observer hook.
func ObserveCache(tier, result string) {
	CacheLookups.WithLabelValues(tier, result).Inc()
}
