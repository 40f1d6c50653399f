package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the engine and its hosts
	Registry = prometheus.NewRegistry()

	// Calls counts boundary calls by operation and outcome (success, error kind)
	Calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrp_calls_total", Help: "Boundary calls by operation and outcome."},
		[]string{"op", "outcome"},
	)
	// InFlight is the number of calls holding a worker slot
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vrp_calls_in_flight", Help: "Boundary calls currently running."},
	)
	// SolveDuration records solve wall time in seconds by final search state
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrp_solve_duration_seconds", Help: "Solve duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}},
		[]string{"state"},
	)
	// Generations counts search generations
	Generations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "vrp_generations_total", Help: "Search generations executed."},
	)
	// EngineFaults counts discarded candidates and recovered panics
	EngineFaults = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "vrp_engine_faults_total", Help: "Recovered engine faults."},
	)
	// Unassigned observes unassigned jobs per solution
	Unassigned = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "vrp_unassigned_jobs", Help: "Unassigned jobs per solution.", Buckets: []float64{0, 1, 2, 5, 10, 50, 100}},
	)

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts continuation webhook outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Calls, InFlight, SolveDuration, Generations, EngineFaults, Unassigned)
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
