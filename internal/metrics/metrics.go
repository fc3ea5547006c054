package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAssignmentsTotal returns a Prometheus counter vector for assignment
// lifecycle outcomes, labeled by terminal-or-current status.
func NewAssignmentsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of assignment status transitions",
	}, []string{"status"})
}

// NewReassignmentsTotal returns a Prometheus counter for automatic
// reassignment attempts.
func NewReassignmentsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_reassignments_total",
		Help: "Total number of automatic reassignment attempts",
	})
}

// NewMatchDuration returns a Prometheus histogram for courier matching latency.
func NewMatchDuration() prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_match_duration_seconds",
		Help:    "Duration of courier matching attempts",
		Buckets: prometheus.DefBuckets,
	})
}

// NewRateLimitExceededTotal returns a Prometheus counter for rejected requests.
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rate_limit_exceeded_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
}

// NewNotifierRetriesTotal returns a Prometheus counter for notifier publish retries.
func NewNotifierRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_notifier_retries_total",
		Help: "Total number of retry attempts performed by the notifier",
	})
}
