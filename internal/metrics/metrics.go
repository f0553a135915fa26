package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for the dispatch service
type Metrics struct {
	// Delivery counters
	MessagesSentTotal       *prometheus.CounterVec
	MessagesFailedTotal     *prometheus.CounterVec
	ResolutionFailuresTotal prometheus.Counter

	// Job lifecycle
	JobsStartedTotal   prometheus.Counter
	JobsCompletedTotal prometheus.Counter
	TasksClaimedTotal  prometheus.Counter

	// Batch processing
	BatchDurationSeconds prometheus.Histogram

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_messages_sent_total",
				Help: "Total number of messages accepted by a channel sender",
			},
			[]string{"channel"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_messages_failed_total",
				Help: "Total number of messages rejected by a channel sender",
			},
			[]string{"channel"},
		),
		ResolutionFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "announce_resolution_failures_total",
				Help: "Total number of targets that failed audience resolution",
			},
		),
		JobsStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "announce_jobs_started_total",
				Help: "Total number of dispatch jobs created",
			},
		),
		JobsCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "announce_jobs_completed_total",
				Help: "Total number of dispatch jobs completed",
			},
		),
		TasksClaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "announce_tasks_claimed_total",
				Help: "Total number of background tasks claimed by workers",
			},
		),
		BatchDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "announce_batch_duration_seconds",
				Help:    "Time spent processing one dispatch batch",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "announce_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "announce_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.ResolutionFailuresTotal,
		m.JobsStartedTotal,
		m.JobsCompletedTotal,
		m.TasksClaimedTotal,
		m.BatchDurationSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncMessagesSent increments the sent message counter for a channel
func IncMessagesSent(channel string) {
	if m := Global(); m != nil {
		m.MessagesSentTotal.WithLabelValues(channel).Inc()
	}
}

// IncMessagesFailed increments the failed message counter for a channel
func IncMessagesFailed(channel string) {
	if m := Global(); m != nil {
		m.MessagesFailedTotal.WithLabelValues(channel).Inc()
	}
}

// IncResolutionFailures increments the resolution failure counter
func IncResolutionFailures() {
	if m := Global(); m != nil {
		m.ResolutionFailuresTotal.Inc()
	}
}

// IncJobsStarted increments the started job counter
func IncJobsStarted() {
	if m := Global(); m != nil {
		m.JobsStartedTotal.Inc()
	}
}

// IncJobsCompleted increments the completed job counter
func IncJobsCompleted() {
	if m := Global(); m != nil {
		m.JobsCompletedTotal.Inc()
	}
}

// IncTasksClaimed increments the claimed task counter
func IncTasksClaimed() {
	if m := Global(); m != nil {
		m.TasksClaimedTotal.Inc()
	}
}

// ObserveBatchDuration records the duration of one processed batch
func ObserveBatchDuration(d time.Duration) {
	if m := Global(); m != nil {
		m.BatchDurationSeconds.Observe(d.Seconds())
	}
}
