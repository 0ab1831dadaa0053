package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	marksTotal               *prometheus.CounterVec
	finesAppliedTotal        prometheus.Counter
	undoTotal                *prometheus.CounterVec
	duplicateRejectionsTotal prometheus.Counter
	conflictRetriesTotal     prometheus.Counter
	feedClientsActive        prometheus.Gauge
	feedEventsTotal          *prometheus.CounterVec
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	evidenceRejectedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the ledger.
func RegisterMetrics() {
	registerOnce.Do(func() {
		marksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_marks_total",
			Help: "Total number of accepted late marks by classification.",
		}, []string{"classification"})

		finesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_fines_applied_total",
			Help: "Monetary total of fines applied by the ledger.",
		})

		undoTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_undo_total",
			Help: "Total number of undo attempts by outcome.",
		}, []string{"outcome"})

		duplicateRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_duplicate_rejections_total",
			Help: "Total number of same-day duplicate marks rejected.",
		})

		conflictRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_conflict_retries_total",
			Help: "Total number of optimistic-concurrency retries performed.",
		})

		feedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_feed_clients_active",
			Help: "Number of websocket feed subscribers currently connected.",
		})

		feedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_feed_events_total",
			Help: "Total number of ledger events broadcast on the live feed.",
		}, []string{"type"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		evidenceRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_evidence_rejected_total",
			Help: "Total number of evidence uploads rejected by validation.",
		}, []string{"reason"})

		prometheus.MustRegister(
			marksTotal,
			finesAppliedTotal,
			undoTotal,
			duplicateRejectionsTotal,
			conflictRetriesTotal,
			feedClientsActive,
			feedEventsTotal,
			httpRequestsTotal,
			httpLatencySeconds,
			evidenceRejectedTotal,
		)
	})
}

// Marks exposes the accepted-marks counter.
func Marks() *prometheus.CounterVec {
	RegisterMetrics()
	return marksTotal
}

// FinesApplied exposes the applied-fines counter.
func FinesApplied() prometheus.Counter {
	RegisterMetrics()
	return finesAppliedTotal
}

// Undo exposes the undo-outcome counter.
func Undo() *prometheus.CounterVec {
	RegisterMetrics()
	return undoTotal
}

// DuplicateRejections exposes the duplicate-guard counter.
func DuplicateRejections() prometheus.Counter {
	RegisterMetrics()
	return duplicateRejectionsTotal
}

// ConflictRetries exposes the optimistic-retry counter.
func ConflictRetries() prometheus.Counter {
	RegisterMetrics()
	return conflictRetriesTotal
}

// FeedClients exposes the live-feed subscriber gauge.
func FeedClients() prometheus.Gauge {
	RegisterMetrics()
	return feedClientsActive
}

// FeedEvents exposes the broadcast-events counter.
func FeedEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return feedEventsTotal
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// EvidenceRejected exposes the evidence-validation counter.
func EvidenceRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return evidenceRejectedTotal
}
