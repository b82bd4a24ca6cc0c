package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/application/dto"
	appservice "github.com/turtacn/certgate/internal/application/service"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/domain/service/mocks"
	"github.com/turtacn/certgate/internal/infrastructure/audit"
	"github.com/turtacn/certgate/internal/infrastructure/crypto"
	"github.com/turtacn/certgate/internal/infrastructure/monitoring"
	"github.com/turtacn/certgate/internal/infrastructure/pkistore"
	"github.com/turtacn/certgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/certgate/internal/infrastructure/sandbox"
	"github.com/turtacn/certgate/internal/infrastructure/varsfile"
	"github.com/turtacn/certgate/internal/interfaces/http/handlers"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/logger"
)

const testPassword = "s3cret-pass"

type stack struct {
	router   *Router
	executor *mocks.MockCommandExecutor
	layout   pkistore.Layout
}

func newStack(t *testing.T, limiter service.RateLimitService) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNopLogger()
	root := t.TempDir()
	layout := pkistore.NewLayout(root)

	cfg := &config.Config{
		Server: config.ServerConfig{BasePath: "/api"},
		Auth:   config.AuthConfig{AdminUsername: "admin", AdminPassword: testPassword, SessionTTL: time.Hour},
	}

	metrics := monitoring.NewMetrics()
	adapter := monitoring.NewMetricsAdapter(metrics)

	db, err := audit.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	store, err := audit.NewGormAuditService(db)
	require.NoError(t, err)
	sink := audit.NewMultiSink(adapter, log, audit.Sink{Name: "sqlite", Service: store})

	sessions, err := crypto.NewSessionManager([]byte("router-test-secret-0123456789"), "", time.Hour, log)
	require.NoError(t, err)

	executor := new(mocks.MockCommandExecutor)
	inspector := sandbox.NewNativeInspector(adapter)
	inventory := pkistore.NewInventory(layout, inspector, service.NewClassifier(), pkistore.InventoryOptions{Metrics: adapter}, log)
	locks := pkistore.NewKeyedMutex()

	caSvc := appservice.NewCAAppService(appservice.CAAppServiceDeps{
		Layout:    layout,
		Executor:  executor,
		Inspector: inspector,
		Vars:      varsfile.NewStore(layout.VarsFile()),
		Locks:     locks,
		Audit:     sink,
		Metrics:   adapter,
	}, log)
	certSvc := appservice.NewCertificateAppService(appservice.CertificateAppServiceDeps{
		Layout:    layout,
		Executor:  executor,
		Inventory: inventory,
		Exporter:  pkistore.NewExporter(layout, filepath.Join(root, "export"), inventory),
		Locks:     locks,
		Audit:     sink,
		Metrics:   adapter,
	}, log)

	router, err := NewRouter(RouterDeps{
		Config:       cfg,
		Logger:       log,
		Metrics:      metrics,
		Sessions:     sessions,
		RateLimiter:  limiter,
		Health:       handlers.NewHealthHandler("test"),
		Auth:         handlers.NewAuthHandler(appservice.NewAuthAppService(cfg.Auth, sessions, sink, adapter, log), log),
		CA:           handlers.NewCAHandler(caSvc, log),
		Certificates: handlers.NewCertificateHandler(certSvc, log),
		CSR:          handlers.NewCSRHandler(appservice.NewCSRAppService(cfg.PKI.PendingPath(), executor, sink, adapter, log), log),
		Audit:        handlers.NewAuditHandler(appservice.NewAuditQueryService(sink)),
	})
	require.NoError(t, err)
	return &stack{router: router, executor: executor, layout: layout}
}

func (s *stack) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.Engine().ServeHTTP(w, req)
	return w
}

func (s *stack) login(t *testing.T) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	s := newStack(t, nil)

	w := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))

	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/ca/status"},
		{http.MethodGet, "/api/config/vars"},
		{http.MethodPost, "/api/config/vars"},
		{http.MethodPost, "/api/ca/create"},
		{http.MethodGet, "/api/ca/download"},
		{http.MethodGet, "/api/ca/download-key"},
		{http.MethodGet, "/api/certificates"},
		{http.MethodPost, "/api/certificates/server"},
		{http.MethodPost, "/api/certificates/client"},
		{http.MethodPost, "/api/certificates/sync"},
		{http.MethodPost, "/api/certificates/web01/renew"},
		{http.MethodGet, "/api/certificates/web01/download/cert"},
		{http.MethodDelete, "/api/certificates/web01"},
		{http.MethodPost, "/api/csr/upload"},
		{http.MethodPost, "/api/logout"},
		{http.MethodGet, "/api/audit/events"},
	}
	for _, p := range protected {
		w := s.do(p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)

		w = s.do(p.method, p.path, "forged.token.value", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", p.method, p.path)
	}
	s.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_SessionFlow(t *testing.T) {
	s := newStack(t, nil)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t)

	w = s.do(http.MethodGet, "/api/ca/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, string(models.CAStatusNotFound), status["status"])
	assert.Equal(t, false, status["success"])

	s.executor.On("Execute", mock.Anything, constants.OpCreateServer, []string{"web01", "", ""}).
		Return(&models.ExecResult{Success: true, Stdout: "issued web01"}, nil).Once()
	w = s.do(http.MethodPost, "/api/certificates/server", token, gin.H{"name": "web01"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = s.do(http.MethodGet, "/api/certificates", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"certificates":[]}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/audit/events?limit=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events dto.AuditListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	actions := make([]constants.AuditAction, 0, len(events.Events))
	for _, e := range events.Events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, constants.AuditActionLogin)
	assert.Contains(t, actions, constants.AuditActionCertIssue)
	for _, e := range events.Events {
		if e.Action == constants.AuditActionCertIssue {
			assert.Equal(t, "admin", e.Actor)
			assert.NotEmpty(t, e.RequestID)
		}
	}

	w = s.do(http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	s.executor.AssertExpectations(t)
}

func TestRouter_MetricsAndNotFound(t *testing.T) {
	s := newStack(t, nil)
	s.do(http.MethodGet, "/api/health", "", nil)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "certgate_http_requests_total")

	w = s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"not_found"`)
}

func TestRouter_RateLimit(t *testing.T) {
	s := newStack(t, ratelimit.NewMemoryRateLimiter(2, time.Minute))

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/api/health", "", nil).Code)

	// metrics sit outside the limited API group
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil).Code)
}
