package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/logger"
)

// CAService is the CA lifecycle surface used by CAHandler.
type CAService interface {
	Status(ctx context.Context) (*models.CAState, error)
	GetVars(ctx context.Context) (*dto.VarsResponse, error)
	UpdateVars(ctx context.Context, cfg models.CAConfig) (*dto.VarsUpdateResponse, error)
	CreateCA(ctx context.Context, req dto.CreateCARequest) (*models.OperationResult, error)
	Artifact(ctx context.Context, kind models.ArtifactKind) (*models.Artifact, error)
}

var caStatusMessages = map[models.CAStatus]string{
	models.CAStatusActive:    "CA is active and valid",
	models.CAStatusNotFound:  "CA not found. Please create a CA first.",
	models.CAStatusReadError: "CA files exist but cannot read certificate details",
}

// CAHandler serves the certificate authority and vars endpoints.
// CAHandler 处理 CA 与 vars 配置相关的请求。
type CAHandler struct {
	ca     CAService
	logger logger.Logger
}

// NewCAHandler creates a new CAHandler.
func NewCAHandler(ca CAService, log logger.Logger) *CAHandler {
	return &CAHandler{ca: ca, logger: log.WithComponent("CAHandler")}
}

// Status reports whether the CA exists and is readable.
func (h *CAHandler) Status(c *gin.Context) {
	state, err := h.ca.Status(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CAStatusResponse{
		Success: state.Active(),
		Message: caStatusMessages[state.Status],
		CAState: state,
	})
}

// GetVars returns the vars configuration.
func (h *CAHandler) GetVars(c *gin.Context) {
	resp, err := h.ca.GetVars(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateVars replaces the vars configuration.
func (h *CAHandler) UpdateVars(c *gin.Context) {
	var req dto.VarsRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.ca.UpdateVars(c.Request.Context(), req.ToCAConfig())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create builds a new CA. Toolchain failures are reported in the body with status 200.
func (h *CAHandler) Create(c *gin.Context) {
	var req dto.CreateCARequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.ca.CreateCA(c.Request.Context(), req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DownloadCert streams ca.crt.
func (h *CAHandler) DownloadCert(c *gin.Context) {
	h.download(c, models.ArtifactCA)
}

// DownloadKey streams ca.key with no-cache and warning headers.
func (h *CAHandler) DownloadKey(c *gin.Context) {
	h.download(c, models.ArtifactKey)
}

func (h *CAHandler) download(c *gin.Context, kind models.ArtifactKind) {
	art, err := h.ca.Artifact(c.Request.Context(), kind)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	sendArtifact(c, art)
}
