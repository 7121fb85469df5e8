package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shefixes",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shefixes",
			Name:      "bookings_created_total",
			Help:      "Successfully created bookings.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shefixes",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts lost to an already taken slot.",
		},
	)

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shefixes",
			Name:      "slots_generated_total",
			Help:      "Availability slots created by generation runs.",
		},
	)

	reviewsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shefixes",
			Name:      "reviews_submitted_total",
			Help:      "Accepted booking reviews.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			bookingConflicts,
			slotsGenerated,
			reviewsSubmitted,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func AddSlotsGenerated(n int) {
	slotsGenerated.Add(float64(n))
}

func IncReviewSubmitted() {
	reviewsSubmitted.Inc()
}
