// Package monitoring provides logging, metrics and tracing for certgate.
package monitoring

import (
	"time"

	"github.com/turtacn/certgate/internal/domain/service"
)

// MetricsAdapter implements the domain's service.Metrics interface on top of Prometheus.
// MetricsAdapter 实现了域的 service.Metrics 接口，将指标发送到 Prometheus 后端。
type MetricsAdapter struct {
	metrics *Metrics
}

// NewMetricsAdapter wraps m so it satisfies service.Metrics.
// NewMetricsAdapter 创建一个包装具体 Prometheus Metrics 对象的新适配器。
func NewMetricsAdapter(m *Metrics) service.Metrics {
	return &MetricsAdapter{metrics: m}
}

func (a *MetricsAdapter) RecordSandboxExecution(operation, result string, duration time.Duration) {
	a.metrics.SandboxExecutions.WithLabelValues(operation, result).Inc()
	a.metrics.SandboxDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (a *MetricsAdapter) RecordInspection(backend string, success bool, duration time.Duration) {
	a.metrics.Inspections.WithLabelValues(backend, resultLabel(success)).Inc()
	a.metrics.InspectionLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

func (a *MetricsAdapter) RecordCacheAccess(cacheType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	a.metrics.CacheAccess.WithLabelValues(cacheType, result).Inc()
}

func (a *MetricsAdapter) RecordLogin(success bool) {
	a.metrics.Logins.WithLabelValues(resultLabel(success)).Inc()
}

func (a *MetricsAdapter) RecordWorkflow(workflow string, success bool) {
	a.metrics.Workflows.WithLabelValues(workflow, resultLabel(success)).Inc()
}

func (a *MetricsAdapter) RecordRateLimitHit(scope string) {
	a.metrics.RateLimitHits.WithLabelValues(scope).Inc()
}

func (a *MetricsAdapter) RecordAuditEvent(sink string, success bool) {
	a.metrics.AuditEvents.WithLabelValues(sink, resultLabel(success)).Inc()
}
