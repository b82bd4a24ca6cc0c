// Package crypto signs and verifies admin session tokens.
package crypto

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

const generatedSecretBytes = 32

// SessionManager issues and verifies HS256 session tokens.
// The signing secret lives in a memguard enclave and is only decrypted for the
// duration of a sign or verify call.
// SessionManager 签发并验证 HS256 会话令牌。
type SessionManager struct {
	secret *memguard.Enclave
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a session manager. An empty secret is replaced by 32 random
// bytes, which invalidates all sessions on restart.
func NewSessionManager(secret []byte, issuer string, ttl time.Duration, log logger.Logger) (*SessionManager, error) {
	if len(secret) == 0 {
		secret = make([]byte, generatedSecretBytes)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn(context.Background(), "No JWT secret configured, generated an ephemeral one; sessions will not survive a restart")
	}
	if issuer == "" {
		issuer = constants.DefaultIssuer
	}
	if ttl <= 0 {
		ttl = constants.SessionTTL
	}
	// NewEnclave wipes the source slice.
	buf := make([]byte, len(secret))
	copy(buf, secret)
	return &SessionManager{
		secret: memguard.NewEnclave(buf),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a new admin session for username.
func (m *SessionManager) Issue(username string) (string, *models.Session, error) {
	now := m.now().Truncate(time.Second)
	session := &models.Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      constants.RoleAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   username,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Username: username,
		Role:     session.Role,
	}

	key, err := m.secret.Open()
	if err != nil {
		return "", nil, errors.Internal(err)
	}
	defer key.Destroy()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.Bytes())
	if err != nil {
		return "", nil, errors.Internal(err)
	}
	return signed, session, nil
}

// Authorize verifies a bearer token and returns the session it carries.
// An empty token is MissingToken; anything that does not verify is InvalidToken.
func (m *SessionManager) Authorize(token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.MissingToken()
	}

	key, err := m.secret.Open()
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer key.Destroy()

	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return key.Bytes(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.InvalidToken(err.Error())
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, errors.InvalidToken("malformed claims")
	}

	session := &models.Session{
		ID:       claims.ID,
		Username: claims.Username,
		Role:     claims.Role,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	session.ExpiresAt = claims.ExpiresAt.Time
	return session, nil
}
