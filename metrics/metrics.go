// Package metrics exposes Prometheus counters for the studio engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studio"

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations admitted, by resource kind.",
		},
		[]string{"kind"},
	)

	reservationsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_rejected_total",
			Help:      "Reservation requests rejected, by error kind.",
		},
		[]string{"reason"},
	)

	reservationsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_cancelled_total",
			Help:      "Reservations cancelled, split by whether a late fee applied.",
		},
		[]string{"late"},
	)

	pointsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_posted_total",
			Help:      "Sum of positive loyalty points posted, by category.",
		},
		[]string{"category"},
	)

	entriesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_entries_expired_total",
			Help:      "Ledger entries excluded by the expiry sweeper.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loyalty_sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationsCreated, reservationsRejected, reservationsCancelled,
			pointsPosted, entriesExpired, sweepDuration, httpRequests,
		)
	})
}

func IncReservationCreated(kind string) {
	reservationsCreated.WithLabelValues(kind).Inc()
}

func IncReservationRejected(reason string) {
	reservationsRejected.WithLabelValues(reason).Inc()
}

func IncReservationCancelled(late bool) {
	label := "false"
	if late {
		label = "true"
	}
	reservationsCancelled.WithLabelValues(label).Inc()
}

// AddPointsPosted ignores non-positive amounts.
func AddPointsPosted(category string, points int64) {
	if points <= 0 {
		return
	}
	pointsPosted.WithLabelValues(category).Add(float64(points))
}

func ObserveSweep(excluded int, d time.Duration) {
	entriesExpired.Add(float64(excluded))
	sweepDuration.Observe(d.Seconds())
}

func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
