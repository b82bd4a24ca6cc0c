package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics. All collectors live on a private registry
// so tests can create as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	SandboxExecutions *prometheus.CounterVec
	SandboxDuration   *prometheus.HistogramVec
	Inspections       *prometheus.CounterVec
	InspectionLatency *prometheus.HistogramVec
	CacheAccess       *prometheus.CounterVec
	Logins            *prometheus.CounterVec
	Workflows         *prometheus.CounterVec
	RateLimitHits     *prometheus.CounterVec
	AuditEvents       *prometheus.CounterVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certgate_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPActiveRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "certgate_http_active_requests",
			Help: "Number of in-flight HTTP requests.",
		}),
		SandboxExecutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_sandbox_executions_total",
				Help: "Total number of toolchain invocations.",
			},
			[]string{"operation", "result"},
		),
		SandboxDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certgate_sandbox_duration_seconds",
				Help:    "Duration of toolchain invocations.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"operation"},
		),
		Inspections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_inspections_total",
				Help: "Total number of certificate introspections.",
			},
			[]string{"backend", "result"},
		),
		InspectionLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certgate_inspection_duration_seconds",
				Help:    "Duration of certificate introspections.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		CacheAccess: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_cache_access_total",
				Help: "Cache hits and misses.",
			},
			[]string{"cache", "result"},
		),
		Logins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_logins_total",
				Help: "Login attempts.",
			},
			[]string{"result"},
		),
		Workflows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_workflows_total",
				Help: "Lifecycle workflow outcomes.",
			},
			[]string{"workflow", "result"},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_rate_limit_hits_total",
				Help: "Total number of rate limit hits.",
			},
			[]string{"scope"},
		),
		AuditEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certgate_audit_events_total",
				Help: "Audit events written per sink.",
			},
			[]string{"sink", "result"},
		),
	}
}

func (m *Metrics) ActiveRequestsInc() { m.HTTPActiveRequests.Inc() }
func (m *Metrics) ActiveRequestsDec() { m.HTTPActiveRequests.Dec() }

// ObserveRequest records a finished HTTP request. path should be the route template.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
