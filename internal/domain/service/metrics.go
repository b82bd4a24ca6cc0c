// Package service defines the interfaces for domain services.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// Metrics 定义了收集业务指标的接口。
type Metrics interface {
	// RecordSandboxExecution records one toolchain invocation; result is success, failure or timeout.
	// RecordSandboxExecution 记录一次工具链调用。
	RecordSandboxExecution(operation, result string, duration time.Duration)

	// RecordInspection records one certificate introspection.
	RecordInspection(backend string, success bool, duration time.Duration)

	// RecordCacheAccess records a cache hit or miss.
	// RecordCacheAccess 记录缓存命中或未命中。
	RecordCacheAccess(cacheType string, hit bool)

	// RecordLogin records a login attempt.
	RecordLogin(success bool)

	// RecordWorkflow records the outcome of a lifecycle workflow (issue, renew, delete, export, csr).
	RecordWorkflow(workflow string, success bool)

	// RecordRateLimitHit records an event when a rate limit is triggered.
	// RecordRateLimitHit 记录触发速率限制的事件。
	RecordRateLimitHit(scope string)

	// RecordAuditEvent records an audit write to a sink.
	RecordAuditEvent(sink string, success bool)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordSandboxExecution(string, string, time.Duration) {}
func (NopMetrics) RecordInspection(string, bool, time.Duration)         {}
func (NopMetrics) RecordCacheAccess(string, bool)                       {}
func (NopMetrics) RecordLogin(bool)                                     {}
func (NopMetrics) RecordWorkflow(string, bool)                          {}
func (NopMetrics) RecordRateLimitHit(string)                            {}
func (NopMetrics) RecordAuditEvent(string, bool)                        {}
