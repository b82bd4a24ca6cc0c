package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
)

// HealthHandler provides the liveness endpoint.
type HealthHandler struct {
	version string
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler reporting version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, now: time.Now}
}

// Health godoc
// @Summary      Health Check
// @Description  Reports that the process is serving requests.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Version:   h.version,
	})
}
