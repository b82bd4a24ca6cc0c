package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/application/service"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// CSRService ingests uploaded signing requests.
type CSRService interface {
	Ingest(ctx context.Context, upload service.CSRUpload, declaredType string) (*models.OperationResult, error)
}

// CSRHandler serves the CSR upload endpoint.
type CSRHandler struct {
	csr    CSRService
	logger logger.Logger
}

// NewCSRHandler creates a new CSRHandler.
func NewCSRHandler(csr CSRService, log logger.Logger) *CSRHandler {
	return &CSRHandler{csr: csr, logger: log.WithComponent("CSRHandler")}
}

// Upload accepts a multipart form with a "csr" file and a "type" field.
func (h *CSRHandler) Upload(c *gin.Context) {
	upload := service.CSRUpload{}
	fh, err := c.FormFile("csr")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			dto.SendError(c, errors.Internal(err))
			return
		}
		defer f.Close()
		upload.Filename = fh.Filename
		upload.ContentType = fh.Header.Get("Content-Type")
		upload.Size = fh.Size
		upload.Content = f
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.logger.Warn(c.Request.Context(), "Malformed CSR upload", logger.Error(err))
		dto.SendError(c, errors.Validation("Invalid multipart upload").WithCause(err))
		return
	}

	res, err := h.csr.Ingest(c.Request.Context(), upload, c.PostForm("type"))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
