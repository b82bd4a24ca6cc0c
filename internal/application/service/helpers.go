// Package service provides application-level services and use cases.
package service

import (
	"context"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// auditRecorder writes best-effort audit events enriched from the request context.
type auditRecorder struct {
	audit  service.AuditService
	logger logger.Logger
}

func newAuditRecorder(audit service.AuditService, log logger.Logger) *auditRecorder {
	return &auditRecorder{audit: audit, logger: log}
}

// record never fails the caller; sink errors are only logged.
func (r *auditRecorder) record(ctx context.Context, action constants.AuditAction, target string, success bool, detail string) {
	if r == nil || r.audit == nil {
		return
	}
	result := models.AuditResultSuccess
	if !success {
		result = models.AuditResultFailure
	}
	event := models.NewAuditEvent(action, target, result).
		WithActor(ActorFromContext(ctx)).
		WithContextInfo(stringFromContext(ctx, constants.ContextKeyClientIP), stringFromContext(ctx, constants.ContextKeyRequestID)).
		WithDetail(detail)

	if err := r.audit.LogEvent(context.WithoutCancel(ctx), *event); err != nil {
		r.logger.Warn(ctx, "Failed to record audit event",
			logger.String("action", string(action)),
			logger.String("target", target),
			logger.Error(err),
		)
	}
}

// SessionFromContext returns the authenticated session stored by the HTTP gate.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(constants.ContextKeySession).(*models.Session)
	return s, ok && s != nil
}

// ActorFromContext returns the session username, or "anonymous".
func ActorFromContext(ctx context.Context) string {
	if s, ok := SessionFromContext(ctx); ok {
		return s.Username
	}
	return "anonymous"
}

func stringFromContext(ctx context.Context, key constants.ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// runOperation executes op detached from request cancellation and folds toolchain
// failures, timeouts included, into an OperationResult.
func runOperation(ctx context.Context, exec service.CommandExecutor, op string, args []string) (*models.OperationResult, error) {
	res, err := exec.Execute(context.WithoutCancel(ctx), op, args)
	if err != nil {
		if errors.HasCode(err, errors.CodeTimeout) {
			return &models.OperationResult{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}
	out := res.ToOperationResult()
	return &out, nil
}

// failureDetail picks the most useful text for an audit record of a failed operation.
func failureDetail(res *models.OperationResult) string {
	if res == nil || res.Success {
		return ""
	}
	const max = 512
	if len(res.Error) > max {
		return res.Error[:max]
	}
	return res.Error
}
