package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/errors"
)

// AuditQuery reads recent audit events.
type AuditQuery interface {
	Recent(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	query AuditQuery
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(query AuditQuery) *AuditHandler {
	return &AuditHandler{query: query}
}

// List returns the most recent audit events, newest first. ?limit= caps the count.
func (h *AuditHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			dto.SendError(c, errors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := h.query.Recent(c.Request.Context(), limit)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	c.JSON(http.StatusOK, dto.AuditListResponse{Success: true, Events: events})
}
