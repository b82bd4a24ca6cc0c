package service

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/pkistore"
	"github.com/turtacn/certgate/pkg/constants"
	apperrors "github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
	"github.com/turtacn/certgate/pkg/utils"
)

// Fixed texts reported in delete warnings.
const (
	warnCertNotFound = "Certificate file not found"
	warnKeyNotFound  = "Private key file not found"
)

const detailMovedByRevoke = "moved by revocation"

// Exporter copies issued material into the export directory.
type Exporter interface {
	Export(ctx context.Context) (*models.ExportResult, error)
}

// CertificateAppService implements the issue, renew, delete, export and download workflows.
// CertificateAppService 实现证书签发、续期、删除、导出和下载流程。
type CertificateAppService struct {
	layout       pkistore.Layout
	executor     service.CommandExecutor
	inventory    service.CertificateInventory
	exporter     Exporter
	locks        *pkistore.KeyedMutex
	revokePolicy string
	metrics      service.Metrics
	audit        *auditRecorder
	logger       logger.Logger
}

// CertificateAppServiceDeps groups the collaborators of CertificateAppService.
type CertificateAppServiceDeps struct {
	Layout       pkistore.Layout
	Executor     service.CommandExecutor
	Inventory    service.CertificateInventory
	Exporter     Exporter
	Locks        *pkistore.KeyedMutex
	RevokePolicy string
	Audit        service.AuditService
	Metrics      service.Metrics
}

// NewCertificateAppService creates a new CertificateAppService.
func NewCertificateAppService(deps CertificateAppServiceDeps, log logger.Logger) *CertificateAppService {
	if deps.Metrics == nil {
		deps.Metrics = service.NopMetrics{}
	}
	if deps.Locks == nil {
		deps.Locks = pkistore.NewKeyedMutex()
	}
	if deps.RevokePolicy == "" {
		deps.RevokePolicy = config.RevokePolicyBestEffort
	}
	log = log.WithComponent("CertificateAppService")
	return &CertificateAppService{
		layout:       deps.Layout,
		executor:     deps.Executor,
		inventory:    deps.Inventory,
		exporter:     deps.Exporter,
		locks:        deps.Locks,
		revokePolicy: deps.RevokePolicy,
		metrics:      deps.Metrics,
		audit:        newAuditRecorder(deps.Audit, log),
		logger:       log,
	}
}

// List returns every issued certificate with its metadata.
func (s *CertificateAppService) List(ctx context.Context) ([]models.CertificateRecord, error) {
	records, err := s.inventory.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return records, nil
}

// IssueServer runs create-server [name ip dns].
func (s *CertificateAppService) IssueServer(ctx context.Context, req dto.ServerCertRequest) (*models.OperationResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkName(req.Name); err != nil {
		return nil, err
	}
	return s.issue(ctx, req.Name, constants.OpCreateServer, []string{req.Name, req.IP, req.DNS})
}

// IssueClient runs create-client [name email].
func (s *CertificateAppService) IssueClient(ctx context.Context, req dto.ClientCertRequest) (*models.OperationResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkName(req.Name); err != nil {
		return nil, err
	}
	return s.issue(ctx, req.Name, constants.OpCreateClient, []string{req.Name, req.Email})
}

// checkName rejects names that are malformed or that resolve onto the authority's own files.
func (s *CertificateAppService) checkName(name string) error {
	if !utils.ValidateClientName(name) {
		return apperrors.Validation("Invalid certificate name")
	}
	if s.layout.Reserved(name) {
		return apperrors.Validation("Certificate name '" + name + "' is reserved for the CA")
	}
	return nil
}

func (s *CertificateAppService) issue(ctx context.Context, name, op string, args []string) (*models.OperationResult, error) {
	unlock := s.locks.Lock(name)
	defer unlock()

	res, err := runOperation(ctx, s.executor, op, args)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordWorkflow("issue", res.Success)
	s.audit.record(ctx, constants.AuditActionCertIssue, name, res.Success, failureDetail(res))
	s.logger.Info(ctx, "Certificate issuance finished",
		logger.String("name", name),
		logger.String("operation", op),
		logger.Bool("success", res.Success),
	)
	return res, nil
}

// Renew runs renew-certificate [name].
func (s *CertificateAppService) Renew(ctx context.Context, name string) (*models.OperationResult, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	res, err := runOperation(ctx, s.executor, constants.OpRenewCertificate, []string{name})
	if err != nil {
		return nil, err
	}
	if res.Success {
		s.inventory.Invalidate()
	}
	s.metrics.RecordWorkflow("renew", res.Success)
	s.audit.record(ctx, constants.AuditActionCertRenew, name, res.Success, failureDetail(res))
	return res, nil
}

// Delete revokes and removes a certificate, its key and its request, reporting every step.
// Under the required revoke policy a failed revocation stops the workflow before any
// file is touched and the result is a PartialFailure. Files that revoke-certificate
// moves into pki/revoked count as deleted.
func (s *CertificateAppService) Delete(ctx context.Context, name string) (*models.DeleteReport, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	report := &models.DeleteReport{Name: name, Deleted: []string{}}
	certPath := s.layout.IssuedCert(name)
	keyPath := s.layout.PrivateKey(name)
	reqPath := s.layout.Request(name)
	present := map[string]bool{
		certPath: fileExists(certPath),
		keyPath:  fileExists(keyPath),
		reqPath:  fileExists(reqPath),
	}

	if !s.revoke(ctx, report, certPath) && s.revokePolicy == config.RevokePolicyRequired {
		report.Record(models.StepCertificate, models.OutcomeSkipped, "revocation required")
		report.Record(models.StepPrivateKey, models.OutcomeSkipped, "revocation required")
		report.Record(models.StepRequest, models.OutcomeSkipped, "revocation required")
		s.finishDelete(ctx, report)
		return report, apperrors.PartialFailure("Certificate '"+name+"' could not be revoked; nothing was deleted").
			WithMetadata("errors", report.Warnings)
	}

	revoked := report.Outcome(models.StepRevoke) == models.OutcomeRevoked
	movedByRevoke := func(path string) bool {
		return revoked && present[path] && !fileExists(path)
	}

	s.removeFile(report, models.StepCertificate, certPath, "certificate", warnCertNotFound, movedByRevoke(certPath))
	s.removeFile(report, models.StepPrivateKey, keyPath, "private key", warnKeyNotFound, movedByRevoke(keyPath))

	switch err := os.Remove(reqPath); {
	case err == nil:
		report.Record(models.StepRequest, models.OutcomeDeleted, "")
		report.Deleted = append(report.Deleted, "certificate request")
	case errors.Is(err, fs.ErrNotExist) && movedByRevoke(reqPath):
		report.Record(models.StepRequest, models.OutcomeDeleted, detailMovedByRevoke)
		report.Deleted = append(report.Deleted, "certificate request")
	case errors.Is(err, fs.ErrNotExist):
		report.Record(models.StepRequest, models.OutcomeNotFound, "")
	default:
		report.Record(models.StepRequest, models.OutcomeFailed, err.Error())
		s.logger.Warn(ctx, "Failed to delete request file", logger.String("name", name), logger.Error(err))
	}

	report.Success = report.Outcome(models.StepCertificate) == models.OutcomeDeleted ||
		report.Outcome(models.StepPrivateKey) == models.OutcomeDeleted
	s.finishDelete(ctx, report)

	if !report.Success {
		return report, apperrors.NotFoundMessage("Certificate '"+name+"' not found or could not be deleted").
			WithMetadata("errors", report.Warnings)
	}
	return report, nil
}

// revoke runs revoke-certificate while the certificate still exists. It reports
// whether deletion may proceed under the required policy.
func (s *CertificateAppService) revoke(ctx context.Context, report *models.DeleteReport, certPath string) bool {
	if !fileExists(certPath) {
		report.Record(models.StepRevoke, models.OutcomeSkipped, "certificate not present")
		return true
	}

	res, err := runOperation(ctx, s.executor, constants.OpRevokeCertificate, []string{report.Name})
	if err == nil && res.Success {
		report.Record(models.StepRevoke, models.OutcomeRevoked, "")
		report.Deleted = append(report.Deleted, "revoked from CA")
		return true
	}

	var detail string
	switch {
	case err != nil:
		detail = err.Error()
	case res.Error != "":
		detail = res.Error
	default:
		detail = "exit status non-zero"
	}
	report.Record(models.StepRevoke, models.OutcomeFailed, detail)
	report.Warn("Revocation failed: " + detail)
	s.logger.Warn(ctx, "Certificate revocation failed",
		logger.String("name", report.Name),
		logger.String("policy", s.revokePolicy),
		logger.String("detail", detail),
	)
	return false
}

func (s *CertificateAppService) removeFile(report *models.DeleteReport, step models.DeleteStep, path, label, missing string, moved bool) {
	if moved {
		report.Record(step, models.OutcomeDeleted, detailMovedByRevoke)
		report.Deleted = append(report.Deleted, label)
		return
	}
	if !fileExists(path) {
		report.Record(step, models.OutcomeNotFound, "")
		report.Warn(missing)
		return
	}
	if err := os.Remove(path); err != nil {
		report.Record(step, models.OutcomeFailed, err.Error())
		report.Warn("Failed to delete " + label + ": " + err.Error())
		return
	}
	report.Record(step, models.OutcomeDeleted, "")
	report.Deleted = append(report.Deleted, label)
}

func (s *CertificateAppService) finishDelete(ctx context.Context, report *models.DeleteReport) {
	s.metrics.RecordWorkflow("delete", report.Success)
	detail := ""
	if len(report.Warnings) > 0 {
		detail = report.Warnings[0]
	}
	s.audit.record(ctx, constants.AuditActionCertDelete, report.Name, report.Success, detail)
	s.logger.Info(ctx, "Certificate delete finished",
		logger.String("name", report.Name),
		logger.Strings("deleted", report.Deleted),
		logger.Int("warnings", len(report.Warnings)),
		logger.Bool("success", report.Success),
	)
}

// Export copies the CA and issued certificates to the export directory.
func (s *CertificateAppService) Export(ctx context.Context) (*models.ExportResult, error) {
	res, err := s.exporter.Export(ctx)
	if err != nil {
		s.metrics.RecordWorkflow("export", false)
		s.audit.record(ctx, constants.AuditActionCertExport, "export", false, err.Error())
		return nil, apperrors.Internal(err)
	}
	s.metrics.RecordWorkflow("export", res.Success)
	s.audit.record(ctx, constants.AuditActionCertExport, res.Directory, res.Success, res.Message)
	return res, nil
}

// ArtifactPath resolves a downloadable file of certificate name.
func (s *CertificateAppService) ArtifactPath(ctx context.Context, name string, kind models.ArtifactKind) (*models.Artifact, error) {
	var art models.Artifact
	switch kind {
	case models.ArtifactCert:
		art = models.Artifact{Path: s.layout.IssuedCert(name), Filename: name + ".crt"}
	case models.ArtifactKey:
		art = models.Artifact{Path: s.layout.PrivateKey(name), Filename: name + ".key", Private: true}
	case models.ArtifactCA:
		art = models.Artifact{Path: s.layout.CACert(), Filename: "ca.crt"}
	default:
		return nil, apperrors.Validation("Invalid file type. Use: cert, key, or ca")
	}
	if kind != models.ArtifactCA {
		if err := s.checkName(name); err != nil {
			return nil, err
		}
	}

	if !fileExists(art.Path) {
		hint := "Certificate may not exist or may not have been created successfully"
		if kind == models.ArtifactKey {
			hint = "Private keys may not be accessible via web interface for security reasons"
		}
		return nil, apperrors.NotFoundMessage("File not found: "+art.Filename).WithMetadata("hint", hint)
	}
	if art.Private {
		s.audit.record(ctx, constants.AuditActionKeyDownload, name, true, "")
	}
	return &art, nil
}
