package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/crypto"
	"github.com/turtacn/certgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newSessionRouter(t *testing.T) (*gin.Engine, *crypto.SessionManager) {
	t.Helper()
	sessions, err := crypto.NewSessionManager([]byte("test-secret-0123456789abcdef"), "", time.Hour, logger.NewNopLogger())
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", RequireSession(sessions, logger.NewNopLogger()), func(c *gin.Context) {
		session := SessionFrom(c)
		fromCtx, _ := c.Request.Context().Value(constants.ContextKeySession).(*models.Session)
		c.JSON(http.StatusOK, gin.H{"user": session.Username, "ctx": fromCtx != nil})
	})
	return r, sessions
}

func TestRequireSession(t *testing.T) {
	r, sessions := newSessionRouter(t)

	t.Run("missing header is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, string(errors.CodeMissingToken), decodeError(t, w).Error.Code)
	})

	t.Run("malformed header is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, string(errors.CodeInvalidToken), decodeError(t, w).Error.Code)
	})

	t.Run("forged token is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid token passes and stores the session", func(t *testing.T) {
		token, _, err := sessions.Issue("admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":"admin","ctx":true}`, w.Body.String())
	})
}

func TestExtractBearer(t *testing.T) {
	assert.Equal(t, "abc", extractBearer("Bearer abc"))
	assert.Equal(t, "abc", extractBearer("bearer abc"))
	assert.Empty(t, extractBearer(""))
	assert.Empty(t, extractBearer("Bearer"))
	assert.Empty(t, extractBearer("Bearer a b"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis down")
}

type hitCounter struct {
	service.NopMetrics
	hits int
}

func (h *hitCounter) RecordRateLimitHit(string) { h.hits++ }

func rateLimitedRouter(limiter service.RateLimitService, metrics service.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, metrics, logger.NewNopLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("denies after the limit with 429", func(t *testing.T) {
		metrics := &hitCounter{}
		r := rateLimitedRouter(ratelimit.NewMemoryRateLimiter(2, time.Minute), metrics)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, string(errors.CodeRateLimitExceeded), decodeError(t, w).Error.Code)
		assert.Equal(t, 1, metrics.hits)
	})

	t.Run("limits each client separately", func(t *testing.T) {
		r := rateLimitedRouter(ratelimit.NewMemoryRateLimiter(1, time.Minute), service.NopMetrics{})

		first := httptest.NewRequest(http.MethodGet, "/", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		second := httptest.NewRequest(http.MethodGet, "/", nil)
		second.RemoteAddr = "10.0.0.2:1234"

		w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
		r.ServeHTTP(w1, first)
		r.ServeHTTP(w2, second)
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, http.StatusOK, w2.Code)
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		r := rateLimitedRouter(failingLimiter{}, service.NopMetrics{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		limiter, err := ratelimit.NewRedisRateLimiter(client, ratelimit.RateLimiterConfig{Limit: 1, Window: time.Minute}, logger.NewNopLogger())
		require.NoError(t, err)
		r := rateLimitedRouter(limiter, service.NopMetrics{})

		w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
		r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/", nil))
		r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}
