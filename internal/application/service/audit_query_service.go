package service

import (
	"context"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/errors"
)

// AuditQueryService exposes the recorded audit trail.
type AuditQueryService struct {
	reader service.AuditReader
}

// NewAuditQueryService creates a new AuditQueryService.
func NewAuditQueryService(reader service.AuditReader) *AuditQueryService {
	return &AuditQueryService{reader: reader}
}

// Recent returns up to limit events, newest first.
func (s *AuditQueryService) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit < 0 {
		return nil, errors.Validation("limit must be positive")
	}
	if s.reader == nil {
		return []models.AuditEvent{}, nil
	}
	events, err := s.reader.ListEvents(ctx, limit)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events, nil
}
