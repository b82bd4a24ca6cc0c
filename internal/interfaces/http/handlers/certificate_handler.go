package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/logger"
)

// CertificateService is the certificate lifecycle surface used by CertificateHandler.
type CertificateService interface {
	List(ctx context.Context) ([]models.CertificateRecord, error)
	IssueServer(ctx context.Context, req dto.ServerCertRequest) (*models.OperationResult, error)
	IssueClient(ctx context.Context, req dto.ClientCertRequest) (*models.OperationResult, error)
	Renew(ctx context.Context, name string) (*models.OperationResult, error)
	Delete(ctx context.Context, name string) (*models.DeleteReport, error)
	Export(ctx context.Context) (*models.ExportResult, error)
	ArtifactPath(ctx context.Context, name string, kind models.ArtifactKind) (*models.Artifact, error)
}

// CertificateHandler serves the issued certificate endpoints.
// CertificateHandler 处理证书签发、续期、删除与下载请求。
type CertificateHandler struct {
	certs  CertificateService
	logger logger.Logger
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(certs CertificateService, log logger.Logger) *CertificateHandler {
	return &CertificateHandler{certs: certs, logger: log.WithComponent("CertificateHandler")}
}

// List returns the certificate inventory.
func (h *CertificateHandler) List(c *gin.Context) {
	records, err := h.certs.List(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	if records == nil {
		records = []models.CertificateRecord{}
	}
	c.JSON(http.StatusOK, dto.CertificateListResponse{Success: true, Certificates: records})
}

// IssueServer issues a server certificate.
func (h *CertificateHandler) IssueServer(c *gin.Context) {
	var req dto.ServerCertRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*models.OperationResult, error) {
		return h.certs.IssueServer(ctx, req)
	})
}

// IssueClient issues a client certificate.
func (h *CertificateHandler) IssueClient(c *gin.Context) {
	var req dto.ClientCertRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*models.OperationResult, error) {
		return h.certs.IssueClient(ctx, req)
	})
}

// Renew renews the named certificate.
func (h *CertificateHandler) Renew(c *gin.Context) {
	name := c.Param("name")
	h.respond(c, func(ctx context.Context) (*models.OperationResult, error) {
		return h.certs.Renew(ctx, name)
	})
}

// Sync copies every issued certificate to the export directory.
func (h *CertificateHandler) Sync(c *gin.Context) {
	res, err := h.certs.Export(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Download streams one file of the named certificate; type is cert, key or ca.
func (h *CertificateHandler) Download(c *gin.Context) {
	art, err := h.certs.ArtifactPath(c.Request.Context(), c.Param("name"), models.ArtifactKind(c.Param("type")))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	sendArtifact(c, art)
}

// Delete revokes and removes the named certificate.
func (h *CertificateHandler) Delete(c *gin.Context) {
	report, err := h.certs.Delete(c.Request.Context(), c.Param("name"))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{
		Message:      "Successfully deleted: " + strings.Join(report.Deleted, ", "),
		DeleteReport: report,
	})
}

// respond renders a workflow result. Toolchain failures are 200 with success=false.
func (h *CertificateHandler) respond(c *gin.Context, run func(context.Context) (*models.OperationResult, error)) {
	res, err := run(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
