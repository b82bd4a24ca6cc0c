package service

import (
	"context"
	"crypto/subtle"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// SessionIssuer signs new admin sessions.
type SessionIssuer interface {
	Issue(username string) (string, *models.Session, error)
}

// AuthAppService checks the administrator credential and hands out sessions.
// AuthAppService 校验管理员凭据并签发会话。
type AuthAppService interface {
	// Login validates input lengths, compares the credential and returns a signed session.
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	// Logout is stateless; it records the event and always succeeds for a valid session.
	Logout(ctx context.Context, session *models.Session) error
}

type authAppServiceImpl struct {
	cfg      config.AuthConfig
	sessions SessionIssuer
	metrics  service.Metrics
	audit    *auditRecorder
	logger   logger.Logger
}

// NewAuthAppService creates a new AuthAppService.
func NewAuthAppService(cfg config.AuthConfig, sessions SessionIssuer, audit service.AuditService, metrics service.Metrics, log logger.Logger) AuthAppService {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	log = log.WithComponent("AuthAppService")
	return &authAppServiceImpl{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
		audit:    newAuditRecorder(audit, log),
		logger:   log,
	}
}

func (s *authAppServiceImpl) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	userLen, passLen := utf8.RuneCountInString(req.Username), utf8.RuneCountInString(req.Password)
	if userLen < constants.MinUsernameLength || passLen < constants.MinPasswordLength {
		appErr := errors.Validation("Invalid login request")
		if userLen < constants.MinUsernameLength {
			appErr.WithMetadata("username", "must be at least 3 characters")
		}
		if passLen < constants.MinPasswordLength {
			appErr.WithMetadata("password", "must be at least 6 characters")
		}
		return nil, appErr
	}

	if !s.checkCredential(req.Username, req.Password) {
		s.metrics.RecordLogin(false)
		s.audit.record(ctx, constants.AuditActionLogin, req.Username, false, "invalid credentials")
		s.logger.Warn(ctx, "Login failed", logger.String("username", req.Username))
		return nil, errors.InvalidCredentials()
	}

	token, session, err := s.sessions.Issue(req.Username)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(true)
	s.audit.record(context.WithValue(ctx, constants.ContextKeySession, session), constants.AuditActionLogin, req.Username, true, "")
	s.logger.Info(ctx, "Login succeeded", logger.String("username", req.Username), logger.String("session_id", session.ID))

	return &dto.LoginResponse{
		Token:     token,
		User:      dto.UserDTO{Username: session.Username, Role: session.Role},
		ExpiresAt: session.ExpiresAt.UTC().Truncate(time.Second),
	}, nil
}

// checkCredential compares both fields without short-circuiting on the username.
func (s *authAppServiceImpl) checkCredential(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUsername)) == 1

	var passOK bool
	switch {
	case s.cfg.AdminPasswordHash != "":
		passOK = bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) == nil
	case s.cfg.AdminPassword != "":
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
	}
	return userOK && passOK
}

func (s *authAppServiceImpl) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.MissingToken()
	}
	s.audit.record(ctx, constants.AuditActionLogout, session.Username, true, "")
	return nil
}
