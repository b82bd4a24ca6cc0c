package sandbox

import (
	"context"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// AllowedOperations is the complete set of toolchain operations that may be run.
var AllowedOperations = map[string]struct{}{
	constants.OpCheckCA:           {},
	constants.OpCreateCA:          {},
	constants.OpCreateServer:      {},
	constants.OpCreateClient:      {},
	constants.OpListCertificates:  {},
	constants.OpRenewCertificate:  {},
	constants.OpProcessCSR:        {},
	constants.OpRevokeCertificate: {},
}

// Execution results used as metric labels.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultTimeout = "timeout"
)

// Executor runs allow-listed operations of the cert-manager-api toolchain.
type Executor struct {
	binary  string
	runner  *Runner
	timeout time.Duration
	tracer  trace.Tracer
	metrics service.Metrics
	logger  logger.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m service.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor for binary.
func NewExecutor(binary string, runner *Runner, timeout time.Duration, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		binary:  binary,
		runner:  runner,
		timeout: timeout,
		tracer:  otel.Tracer("github.com/turtacn/certgate/sandbox"),
		metrics: service.NopMetrics{},
		logger:  log.WithComponent("sandbox"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ service.CommandExecutor = (*Executor)(nil)

// Execute runs op with sanitized args. The caller's cancellation is not propagated:
// once started, an operation runs to completion or timeout.
func (e *Executor) Execute(ctx context.Context, op string, args []string) (*models.ExecResult, error) {
	if _, ok := AllowedOperations[op]; !ok {
		e.logger.Warn(ctx, "Rejected operation outside allow-list", logger.String("operation", op))
		return nil, errors.UnknownOperation(op)
	}

	ctx, span := e.tracer.Start(context.WithoutCancel(ctx), "sandbox."+op,
		trace.WithAttributes(attribute.String("sandbox.operation", op), attribute.Int("sandbox.args", len(args))))
	defer span.End()

	argv := append([]string{op}, SanitizeArgs(args)...)
	run := e.runner.Run(ctx, e.timeout, e.binary, argv...)

	result := &models.ExecResult{
		Success:  run.Err == nil && !run.TimedOut,
		Stdout:   run.Stdout,
		Stderr:   run.Stderr,
		ExitCode: run.ExitCode,
		TimedOut: run.TimedOut,
		Duration: run.Duration,
	}

	fields := []logger.Field{
		logger.String("operation", op),
		logger.String("binary", filepath.Base(e.binary)),
		logger.Int("exit_code", run.ExitCode),
		logger.Duration("duration", run.Duration),
	}

	switch {
	case run.TimedOut:
		e.metrics.RecordSandboxExecution(op, resultTimeout, run.Duration)
		span.SetStatus(codes.Error, "timeout")
		e.logger.Warn(ctx, "Operation timed out", append(fields, logger.Duration("timeout", e.timeout))...)
		result.Stderr = "operation timed out"
		return result, errors.Timeout(op, e.timeout.String())
	case !result.Success:
		e.metrics.RecordSandboxExecution(op, resultFailure, run.Duration)
		span.SetStatus(codes.Error, "non-zero exit")
		span.SetAttributes(attribute.Int("sandbox.exit_code", run.ExitCode))
		e.logger.Warn(ctx, "Operation failed", append(fields, logger.String("stderr", truncate(run.Stderr, 512)))...)
	default:
		e.metrics.RecordSandboxExecution(op, resultSuccess, run.Duration)
		span.SetStatus(codes.Ok, "")
		e.logger.Info(ctx, "Operation completed", fields...)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
