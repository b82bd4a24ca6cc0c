// Package postgres provides PostgreSQL connection management for the audit store.
// It pools connections with pgx and exposes them to gorm through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/pkg/logger"
)

const connectTimeout = 10 * time.Second

// DBConnection manages a PostgreSQL connection pool lifecycle.
type DBConnection struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection creates the pool and performs an initial ping.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	log = log.WithComponent("postgres")

	log.Info(ctx, "Initializing PostgreSQL connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Minute
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DBConnection{
		pool:   pool,
		sqlDB:  stdlib.OpenDBFromPool(pool),
		config: cfg,
		logger: log,
	}, nil
}

// Pool returns the underlying pgx pool.
func (db *DBConnection) Pool() *pgxpool.Pool {
	return db.pool
}

// Gorm opens a gorm handle sharing the pool.
func (db *DBConnection) Gorm(gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{}
	}
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.sqlDB}), gcfg)
}

// Close shuts down the pool.
func (db *DBConnection) Close() {
	_ = db.sqlDB.Close()
	db.pool.Close()
	db.logger.Info(context.Background(), "PostgreSQL connection pool closed")
}
