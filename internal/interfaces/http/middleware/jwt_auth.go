package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// SessionAuthorizer verifies an admin session token.
type SessionAuthorizer interface {
	Authorize(token string) (*models.Session, error)
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireSession rejects requests without a valid session token. A missing token is
// a 401, a present but unverifiable one is a 403.
// RequireSession 拒绝没有有效会话令牌的请求。
func RequireSession(sessions SessionAuthorizer, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := extractBearer(header)
		if token == "" {
			if header != "" {
				log.Warn(c.Request.Context(), "Malformed Authorization header", logger.String("client_ip", c.ClientIP()))
				dto.SendError(c, errors.InvalidToken("malformed authorization header"))
				return
			}
			dto.SendError(c, errors.MissingToken())
			return
		}

		session, err := sessions.Authorize(token)
		if err != nil {
			log.Warn(c.Request.Context(), "Session verification failed",
				logger.String("client_ip", c.ClientIP()),
				logger.Error(err),
			)
			dto.SendError(c, err)
			return
		}

		c.Set(string(constants.ContextKeySession), session)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeySession, session))
		c.Next()
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c *gin.Context) *models.Session {
	v, ok := c.Get(string(constants.ContextKeySession))
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}
