// Package audit records mutating operations to durable and streaming sinks.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// GormAuditService provides a GORM-backed implementation of the AuditService.
// It stores audit events in a relational database.
type GormAuditService struct {
	db *gorm.DB
}

var (
	_ service.AuditService = (*GormAuditService)(nil)
	_ service.AuditReader  = (*GormAuditService)(nil)
)

// NewGormAuditService migrates the audit table and returns the service.
func NewGormAuditService(db *gorm.DB) (*GormAuditService, error) {
	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit table: %w", err)
	}
	return &GormAuditService{db: db}, nil
}

// OpenSQLite opens (creating if needed) a sqlite audit database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
}

// LogEvent saves an AuditEvent to the database.
func (s *GormAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	return s.db.WithContext(ctx).Create(&event).Error
}

// ListEvents returns the newest events first. limit is clamped to [1, 500], 0 means 50.
func (s *GormAuditService) ListEvents(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	var events []models.AuditEvent
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
