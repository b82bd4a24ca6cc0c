package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/certgate/pkg/logger"
)

// Build wires the configured sinks. The returned cleanup closes every opened resource.
func Build(ctx context.Context, cfg *config.Config, metrics service.Metrics, log logger.Logger) (*MultiSink, func(), error) {
	var sinks []Sink
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if !cfg.Audit.Enabled {
		return NewMultiSink(metrics, log), cleanup, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Audit.Driver {
	case config.AuditDriverPostgres:
		conn, cerr := postgres.NewDBConnection(ctx, &cfg.Database, log)
		if cerr != nil {
			return nil, cleanup, cerr
		}
		closers = append(closers, conn.Close)
		db, err = conn.Gorm(nil)
	default:
		db, err = OpenSQLite(cfg.Audit.SQLitePath)
		if err == nil {
			closers = append(closers, func() {
				if sqlDB, e := db.DB(); e == nil {
					_ = sqlDB.Close()
				}
			})
		}
	}
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to open audit database: %w", err)
	}

	store, err := NewGormAuditService(db)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	sinks = append(sinks, Sink{Name: cfg.Audit.Driver, Service: store})

	if cfg.Audit.Kafka.Enabled {
		producer := NewKafkaProducer(cfg.Audit.Kafka, log)
		closers = append(closers, func() { _ = producer.Close() })
		sinks = append(sinks, Sink{Name: "kafka", Service: producer})
	}

	log.Info(ctx, "Audit trail enabled",
		logger.String("driver", cfg.Audit.Driver),
		logger.Bool("kafka", cfg.Audit.Kafka.Enabled),
	)
	return NewMultiSink(metrics, log, sinks...), cleanup, nil
}
