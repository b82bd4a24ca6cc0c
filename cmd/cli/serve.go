package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appservice "github.com/turtacn/certgate/internal/application/service"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/audit"
	"github.com/turtacn/certgate/internal/infrastructure/crypto"
	"github.com/turtacn/certgate/internal/infrastructure/kms"
	"github.com/turtacn/certgate/internal/infrastructure/monitoring"
	redisstore "github.com/turtacn/certgate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/certgate/internal/infrastructure/pkistore"
	"github.com/turtacn/certgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/certgate/internal/infrastructure/sandbox"
	"github.com/turtacn/certgate/internal/infrastructure/varsfile"
	grpcserver "github.com/turtacn/certgate/internal/interfaces/grpc"
	httpserver "github.com/turtacn/certgate/internal/interfaces/http"
	"github.com/turtacn/certgate/internal/interfaces/http/handlers"
	"github.com/turtacn/certgate/pkg/logger"
)

const caHealthInterval = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the optional gRPC health endpoint)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	loader := config.NewLoader(configFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	loader.WatchLogLevel(log)
	log.Info(ctx, "Starting certgate",
		logger.String("version", Version),
		logger.String("config", loader.ConfigFileUsed()),
	)

	if cfg.Vault.Enabled {
		source, err := kms.NewVaultSecretSource(cfg.Vault, log)
		if err != nil {
			return err
		}
		secrets, err := source.Load(ctx)
		if err != nil {
			return err
		}
		secrets.Apply(&cfg.Auth)
	}
	if !cfg.Auth.HasCredential() {
		return fmt.Errorf("no administrator credential configured: set auth.admin_password or auth.admin_password_hash")
	}

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, Version, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "Tracer shutdown failed", logger.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics()
	adapter := monitoring.NewMetricsAdapter(metrics)

	layout := pkistore.NewLayout(cfg.PKI.Root)
	if cfg.PKI.Bootstrap {
		err := pkistore.Bootstrap(ctx, layout, pkistore.BootstrapOptions{
			PendingDir:    cfg.PKI.PendingPath(),
			EasyRSASource: cfg.PKI.EasyRSASource,
			TemplateDir:   cfg.PKI.TemplateDir,
		}, log)
		if err != nil {
			log.Warn(ctx, "Bootstrap incomplete, continuing", logger.Error(err))
		}
	}

	runner := sandbox.NewRunner(cfg.Sandbox.Workdir, cfg.Sandbox.Path, cfg.Sandbox.ExtraEnv)
	executor := sandbox.NewExecutor(cfg.Sandbox.Binary, runner, cfg.Sandbox.Timeout, log,
		sandbox.WithTracer(tracing.Tracer()),
		sandbox.WithMetrics(adapter),
	)
	inspector, err := sandbox.NewInspector(cfg.Inspector, runner, cfg.Sandbox.IntrospectionTimeout, adapter)
	if err != nil {
		return err
	}
	inventory := pkistore.NewInventory(layout, inspector, service.NewClassifier(), pkistore.InventoryOptions{
		Concurrency: cfg.Inspector.Concurrency,
		Timeout:     cfg.Sandbox.IntrospectionTimeout,
		CacheTTL:    cfg.Inspector.CacheTTL,
		Metrics:     adapter,
	}, log)
	locks := pkistore.NewKeyedMutex()

	sink, closeAudit, err := audit.Build(ctx, cfg, adapter, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	limiter, closeLimiter, err := buildRateLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	sessions, err := crypto.NewSessionManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.SessionTTL, log)
	if err != nil {
		return err
	}

	caSvc := appservice.NewCAAppService(appservice.CAAppServiceDeps{
		Layout:               layout,
		Executor:             executor,
		Inspector:            inspector,
		Vars:                 varsfile.NewStore(layout.VarsFile()),
		Locks:                locks,
		Audit:                sink,
		Metrics:              adapter,
		IntrospectionTimeout: cfg.Sandbox.IntrospectionTimeout,
	}, log)
	certSvc := appservice.NewCertificateAppService(appservice.CertificateAppServiceDeps{
		Layout:       layout,
		Executor:     executor,
		Inventory:    inventory,
		Exporter:     pkistore.NewExporter(layout, cfg.PKI.ExportDir, inventory),
		Locks:        locks,
		RevokePolicy: cfg.PKI.RevokePolicy,
		Audit:        sink,
		Metrics:      adapter,
	}, log)

	deps := httpserver.RouterDeps{
		Config:       cfg,
		Logger:       log,
		Metrics:      metrics,
		Tracer:       tracing.Tracer(),
		Sessions:     sessions,
		RateLimiter:  limiter,
		Health:       handlers.NewHealthHandler(Version),
		Auth:         handlers.NewAuthHandler(appservice.NewAuthAppService(cfg.Auth, sessions, sink, adapter, log), log),
		CA:           handlers.NewCAHandler(caSvc, log),
		Certificates: handlers.NewCertificateHandler(certSvc, log),
		CSR:          handlers.NewCSRHandler(appservice.NewCSRAppService(cfg.PKI.PendingPath(), executor, sink, adapter, log), log),
	}
	if cfg.Audit.Enabled {
		deps.Audit = handlers.NewAuditHandler(appservice.NewAuditQueryService(sink))
	}
	router, err := httpserver.NewRouter(deps)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(router.Start)

	if cfg.Inspector.Watch {
		watcher, err := pkistore.NewWatcher(inventory, log)
		if err != nil {
			log.Warn(ctx, "Issued directory watcher disabled", logger.Error(err))
		} else {
			defer watcher.Close()
			g.Go(func() error {
				watcher.Run(gctx)
				return nil
			})
		}
	}

	var health *grpcserver.HealthServer
	if cfg.Server.GRPCEnabled {
		lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		health = grpcserver.NewHealthServer(caSvc, grpcserver.NewInterceptorChain(log, limiter), log)
		g.Go(func() error { return health.Serve(lis) })
		g.Go(func() error {
			health.Watch(gctx, caHealthInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "Shutting down")
		if health != nil {
			health.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return router.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "Server exited with error", err)
		return err
	}
	log.Info(context.Background(), "Server exited")
	return nil
}

// buildRateLimiter returns nil when rate limiting is disabled.
func buildRateLimiter(ctx context.Context, cfg *config.Config, log logger.Logger) (service.RateLimitService, func(), error) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}
	if cfg.RateLimit.Backend != config.RateLimitRedis {
		return ratelimit.NewMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), noop, nil
	}

	client, err := redisstore.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, noop, err
	}
	limiter, err := ratelimit.NewRedisRateLimiter(client, ratelimit.RateLimiterConfig{
		Limit:               cfg.RateLimit.Requests,
		Window:              cfg.RateLimit.Window,
		EnableLocalFallback: true,
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return limiter, func() { _ = client.Close() }, nil
}
