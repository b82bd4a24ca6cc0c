package service

import (
	"bytes"
	"context"
	"encoding/pem"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var allowedCSRMediaTypes = map[string]bool{
	"application/pkcs10":     true,
	"application/x-pem-file": true,
}

// CSRUpload is an uploaded signing request as received from the transport layer.
type CSRUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CSRAppService persists uploaded signing requests and hands them to the toolchain.
// CSRAppService 保存上传的证书签名请求并交给工具链签发。
type CSRAppService struct {
	pendingDir string
	executor   service.CommandExecutor
	metrics    service.Metrics
	audit      *auditRecorder
	logger     logger.Logger
	now        func() time.Time
}

// NewCSRAppService creates a new CSRAppService storing uploads under pendingDir.
func NewCSRAppService(pendingDir string, executor service.CommandExecutor, audit service.AuditService, metrics service.Metrics, log logger.Logger) *CSRAppService {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	log = log.WithComponent("CSRAppService")
	return &CSRAppService{
		pendingDir: pendingDir,
		executor:   executor,
		metrics:    metrics,
		audit:      newAuditRecorder(audit, log),
		logger:     log,
		now:        time.Now,
	}
}

// StoredName returns the collision-resistant name an upload is persisted under.
func StoredName(original string, at time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	return fmt.Sprintf("%d_%s", at.UnixMilli(), unsafeFilenameChars.ReplaceAllString(base, "_"))
}

// Ingest validates and stores the upload, then runs process-csr [storedName type].
// The stored file is kept when signing fails.
func (s *CSRAppService) Ingest(ctx context.Context, upload CSRUpload, declaredType string) (*models.OperationResult, error) {
	certType := constants.CertificateType(declaredType)
	if !certType.Valid() {
		return nil, errors.Validation("Invalid certificate type")
	}
	if upload.Content == nil {
		return nil, errors.Validation("No CSR file uploaded")
	}
	if upload.Size > constants.MaxCSRUploadBytes {
		return nil, errors.Validation("CSR file exceeds the 10MB limit")
	}
	if !acceptedCSRFile(upload.Filename, upload.ContentType) {
		return nil, errors.Validation("Only .csr or .pem files are allowed")
	}

	content, err := io.ReadAll(io.LimitReader(upload.Content, constants.MaxCSRUploadBytes+1))
	if err != nil {
		return nil, errors.Internal(err)
	}
	if len(content) > constants.MaxCSRUploadBytes {
		return nil, errors.Validation("CSR file exceeds the 10MB limit")
	}
	if !containsCSRBlock(content) {
		return nil, errors.Validation("File does not contain a PEM certificate request")
	}

	csr := &models.UploadedCSR{
		StoredName:   StoredName(upload.Filename, s.now()),
		DeclaredType: certType,
		Size:         int64(len(content)),
		UploadedAt:   s.now().UTC(),
	}
	csr.Path = filepath.Join(s.pendingDir, csr.StoredName)

	if err := os.MkdirAll(s.pendingDir, 0o750); err != nil {
		return nil, errors.Internal(err)
	}
	if err := os.WriteFile(csr.Path, content, 0o600); err != nil {
		return nil, errors.Internal(err)
	}

	res, err := runOperation(ctx, s.executor, constants.OpProcessCSR, []string{csr.StoredName, string(csr.DeclaredType)})
	if err != nil {
		return nil, err
	}
	res.StoredName = csr.StoredName

	s.metrics.RecordWorkflow("csr", res.Success)
	s.audit.record(ctx, constants.AuditActionCSRIngest, csr.StoredName, res.Success, failureDetail(res))
	s.logger.Info(ctx, "CSR processed",
		logger.String("stored_name", csr.StoredName),
		logger.String("type", declaredType),
		logger.Int64("size", csr.Size),
		logger.Bool("success", res.Success),
	)
	return res, nil
}

func acceptedCSRFile(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csr", ".pem":
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && allowedCSRMediaTypes[mediaType]
}

func containsCSRBlock(content []byte) bool {
	rest := bytes.TrimSpace(content)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return false
		}
		if block.Type == "CERTIFICATE REQUEST" || block.Type == "NEW CERTIFICATE REQUEST" {
			return true
		}
	}
}
