package service

import (
	"context"
	"os"
	"time"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/pkistore"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
	"github.com/turtacn/certgate/pkg/utils"
)

// CAAppService derives the CA state, manages the vars file and creates the authority.
// CAAppService 推导 CA 状态、管理 vars 文件并创建证书颁发机构。
type CAAppService struct {
	layout    pkistore.Layout
	executor  service.CommandExecutor
	inspector service.CertificateInspector
	vars      service.VarsStore
	locks     *pkistore.KeyedMutex
	timeout   time.Duration
	metrics   service.Metrics
	audit     *auditRecorder
	logger    logger.Logger
}

// CAAppServiceDeps groups the collaborators of CAAppService.
type CAAppServiceDeps struct {
	Layout               pkistore.Layout
	Executor             service.CommandExecutor
	Inspector            service.CertificateInspector
	Vars                 service.VarsStore
	Locks                *pkistore.KeyedMutex
	Audit                service.AuditService
	Metrics              service.Metrics
	IntrospectionTimeout time.Duration
}

// NewCAAppService creates a new CAAppService.
func NewCAAppService(deps CAAppServiceDeps, log logger.Logger) *CAAppService {
	if deps.Metrics == nil {
		deps.Metrics = service.NopMetrics{}
	}
	if deps.Locks == nil {
		deps.Locks = pkistore.NewKeyedMutex()
	}
	if deps.IntrospectionTimeout <= 0 {
		deps.IntrospectionTimeout = constants.DefaultIntrospectionTimeout
	}
	log = log.WithComponent("CAAppService")
	return &CAAppService{
		layout:    deps.Layout,
		executor:  deps.Executor,
		inspector: deps.Inspector,
		vars:      deps.Vars,
		locks:     deps.Locks,
		timeout:   deps.IntrospectionTimeout,
		metrics:   deps.Metrics,
		audit:     newAuditRecorder(deps.Audit, log),
		logger:    log,
	}
}

// Status recomputes the CA state from the filesystem. A missing CA is a state, not an error.
func (s *CAAppService) Status(ctx context.Context) (*models.CAState, error) {
	state := &models.CAState{
		CAFile:  fileExists(s.layout.CACert()),
		KeyFile: fileExists(s.layout.CAKey()),
	}
	if !state.CAFile || !state.KeyFile {
		state.Status = models.CAStatusNotFound
		return state, nil
	}

	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	details, err := s.inspector.Describe(ictx, s.layout.CACert())
	if err != nil {
		state.Status = models.CAStatusReadError
		state.Error = err.Error()
		s.logger.Warn(ctx, "CA certificate is unreadable", logger.Error(err))
		return state, nil
	}
	state.Status = models.CAStatusActive
	state.Details = details

	if meta, err := s.inspector.Inspect(ictx, s.layout.CACert()); err == nil {
		state.Subject = meta.Subject
		nb, na := meta.NotBefore, meta.NotAfter
		state.NotBefore, state.NotAfter = &nb, &na
	}

	cfg, found, err := s.vars.Read()
	if err != nil {
		s.logger.Warn(ctx, "Failed to read vars file", logger.Error(err))
	} else if found {
		state.Vars = &cfg
	}
	return state, nil
}

// GetVars returns the current vars configuration, or the defaults when the file is absent.
func (s *CAAppService) GetVars(_ context.Context) (*dto.VarsResponse, error) {
	cfg, found, err := s.vars.Read()
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &dto.VarsResponse{Exists: found, Config: cfg}, nil
}

// UpdateVars validates and atomically replaces the vars file.
func (s *CAAppService) UpdateVars(ctx context.Context, cfg models.CAConfig) (*dto.VarsUpdateResponse, error) {
	if err := s.vars.Write(cfg); err != nil {
		s.audit.record(ctx, constants.AuditActionVarsUpdate, "vars", false, err.Error())
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.Internal(err)
	}
	s.audit.record(ctx, constants.AuditActionVarsUpdate, "vars", true, "")
	s.logger.Info(ctx, "Vars configuration updated", logger.String("organization", cfg.Organization))
	return &dto.VarsUpdateResponse{
		Success: true,
		Message: "Configuration updated successfully",
		Config:  cfg,
	}, nil
}

// CreateCA runs create-ca with the subject fields. An existing CA is not checked for;
// the caller decides whether to overwrite.
func (s *CAAppService) CreateCA(ctx context.Context, req dto.CreateCARequest) (*models.OperationResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pkistore.CAKey)
	defer unlock()

	res, err := runOperation(ctx, s.executor, constants.OpCreateCA, req.Args())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordWorkflow("create_ca", res.Success)
	s.audit.record(ctx, constants.AuditActionCACreate, req.Org, res.Success, failureDetail(res))
	s.logger.Info(ctx, "CA creation finished", logger.Bool("success", res.Success))
	return res, nil
}

// Artifact resolves the CA certificate or private key for download.
func (s *CAAppService) Artifact(ctx context.Context, kind models.ArtifactKind) (*models.Artifact, error) {
	switch kind {
	case models.ArtifactCA, models.ArtifactCert:
		if !fileExists(s.layout.CACert()) {
			return nil, errors.NotFoundMessage("CA certificate not found. Please create a CA first.")
		}
		return &models.Artifact{Path: s.layout.CACert(), Filename: "ca.crt"}, nil
	case models.ArtifactKey:
		if !fileExists(s.layout.CAKey()) {
			return nil, errors.NotFoundMessage("CA private key not found. Please create a CA first.")
		}
		s.audit.record(ctx, constants.AuditActionCAKeyExport, "ca.key", true, "")
		s.logger.Warn(ctx, "CA private key downloaded", logger.String("actor", ActorFromContext(ctx)))
		return &models.Artifact{Path: s.layout.CAKey(), Filename: "ca.key", Private: true}, nil
	default:
		return nil, errors.Validation("Invalid file type. Use: cert, key, or ca")
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
