package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ride_booking"

var (
	QuotesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "quotes_total", Help: "Fare quote requests served"})
	OffersTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_total", Help: "Driver offer lists served"})
	// OffersEmpty counts offer requests that found no online driver.
	OffersEmpty      = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_empty_total", Help: "Offer requests with no driver available"})
	LocationFallback = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "location_fallback_total", Help: "Locations resolved to the default place"})
	DriversOnline    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "drivers_online", Help: "Number of online drivers seeded into the index"})

	// TripsConfirmed is labelled by result: inserted, duplicate or error.
	TripsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trips_confirmed_total", Help: "Trip confirmations by result"},
		[]string{"result"},
	)
	TripTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trip_transitions_total", Help: "Trip status changes"},
		[]string{"status"},
	)
	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "side_effect_failures_total", Help: "Best-effort side effects that failed"},
		[]string{"kind"},
	)
	ConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "confirm_latency_seconds", Help: "Trip confirmation latency seconds"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
