package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/monitoring"
	"github.com/turtacn/certgate/internal/interfaces/http/handlers"
	"github.com/turtacn/certgate/internal/interfaces/http/middleware"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// multipart overhead allowed on top of the CSR size cap
const uploadSlack = 1 << 20

// RouterDeps collects what the router wires together. A nil RateLimiter disables rate limiting.
type RouterDeps struct {
	Config       *config.Config
	Logger       logger.Logger
	Metrics      *monitoring.Metrics
	Tracer       trace.Tracer
	Sessions     middleware.SessionAuthorizer
	RateLimiter  service.RateLimitService
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	CA           *handlers.CAHandler
	Certificates *handlers.CertificateHandler
	CSR          *handlers.CSRHandler
	Audit        *handlers.AuditHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	deps   RouterDeps
	logger logger.Logger
	server *http.Server
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(deps RouterDeps) (*Router, error) {
	handlers.ConfigureBinding()
	if deps.Tracer == nil {
		deps.Tracer = handlers.DefaultTracer()
	}

	engine := gin.New()
	engine.MaxMultipartMemory = constants.MaxCSRUploadBytes
	if err := engine.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		return nil, err
	}

	r := &Router{
		engine: engine,
		deps:   deps,
		logger: deps.Logger.WithComponent("http"),
	}
	r.setupRoutes()
	return r, nil
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupRoutes() {
	cfg := r.deps.Config.Server

	// 全局中间件
	r.engine.Use(handlers.RecoveryMiddleware(r.logger))
	r.engine.Use(handlers.RequestIDMiddleware())
	r.engine.Use(handlers.LoggingMiddleware(r.logger))
	r.engine.Use(handlers.TracingMiddleware(r.deps.Tracer))
	if r.deps.Metrics != nil {
		r.engine.Use(handlers.MetricsMiddleware(r.deps.Metrics))
	}
	r.engine.Use(middleware.SecurityHeaders())

	// CORS 配置
	if len(cfg.AllowedOrigins) > 0 {
		r.engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID},
			ExposeHeaders:    []string{constants.HeaderRequestID, "Content-Disposition", constants.HeaderSecurityWarning, "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if r.deps.Metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if cfg.EnablePprof {
		pprof.Register(r.engine)
	}

	api := r.engine.Group(cfg.BasePath)
	if r.deps.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(r.deps.RateLimiter, r.metricsSink(), r.logger))
	}

	api.GET("/health", r.deps.Health.Health)
	api.POST("/auth/login", r.deps.Auth.Login)

	authed := api.Group("")
	authed.Use(middleware.RequireSession(r.deps.Sessions, r.logger))
	{
		authed.POST("/logout", r.deps.Auth.Logout)

		authed.GET("/ca/status", r.deps.CA.Status)
		authed.POST("/ca/create", r.deps.CA.Create)
		authed.GET("/ca/download", r.deps.CA.DownloadCert)
		authed.GET("/ca/download-key", r.deps.CA.DownloadKey)
		authed.GET("/config/vars", r.deps.CA.GetVars)
		authed.POST("/config/vars", r.deps.CA.UpdateVars)

		certs := authed.Group("/certificates")
		certs.GET("", r.deps.Certificates.List)
		certs.POST("/server", r.deps.Certificates.IssueServer)
		certs.POST("/client", r.deps.Certificates.IssueClient)
		certs.POST("/sync", r.deps.Certificates.Sync)
		certs.POST("/:name/renew", r.deps.Certificates.Renew)
		certs.GET("/:name/download/:type", r.deps.Certificates.Download)
		certs.DELETE("/:name", r.deps.Certificates.Delete)

		authed.POST("/csr/upload", middleware.BodyLimit(constants.MaxCSRUploadBytes+uploadSlack), r.deps.CSR.Upload)

		if r.deps.Audit != nil {
			authed.GET("/audit/events", r.deps.Audit.List)
		}
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, errors.NotFoundMessage("The requested resource was not found"))
	})
}

func (r *Router) metricsSink() service.Metrics {
	if r.deps.Metrics == nil {
		return service.NopMetrics{}
	}
	return monitoring.NewMetricsAdapter(r.deps.Metrics)
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (r *Router) Start() error {
	cfg := r.deps.Config.Server
	r.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", cfg.Addr()))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}
