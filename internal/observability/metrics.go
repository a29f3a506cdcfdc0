// README: Prometheus collectors for quotes, bookings and HTTP traffic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fareway"

var (
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "quotes_total", Help: "Quote requests by result"},
		[]string{"result"},
	)
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Booking attempts by result"},
		[]string{"result"},
	)
	GeocodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_duration_seconds",
			Help:      "Geocoder call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

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

// Result labels shared by the quote and booking counters.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultGeocode   = "geocode_error"
	ResultDuplicate = "duplicate"
	ResultNotFound  = "not_found"
	ResultError     = "error"
)
