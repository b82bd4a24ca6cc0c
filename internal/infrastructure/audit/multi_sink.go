package audit

import (
	"context"
	"errors"
	"io"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/logger"
)

// Sink is a named audit destination.
type Sink struct {
	Name    string
	Service service.AuditService
}

// MultiSink fans each event out to every sink. A failing sink is logged and counted
// but never stops delivery to the others.
// MultiSink 将每个事件分发到所有审计目标。
type MultiSink struct {
	sinks   []Sink
	reader  service.AuditReader
	metrics service.Metrics
	logger  logger.Logger
}

var (
	_ service.AuditService = (*MultiSink)(nil)
	_ service.AuditReader  = (*MultiSink)(nil)
)

// NewMultiSink builds a fan-out service. The first sink that can be queried backs ListEvents.
func NewMultiSink(metrics service.Metrics, log logger.Logger, sinks ...Sink) *MultiSink {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	m := &MultiSink{sinks: sinks, metrics: metrics, logger: log.WithComponent("audit")}
	for _, s := range sinks {
		if r, ok := s.Service.(service.AuditReader); ok {
			m.reader = r
			break
		}
	}
	return m
}

// LogEvent delivers event to all sinks and returns the joined failures.
func (m *MultiSink) LogEvent(ctx context.Context, event models.AuditEvent) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Service.LogEvent(ctx, event)
		m.metrics.RecordAuditEvent(s.Name, err == nil)
		if err != nil {
			m.logger.Warn(ctx, "Audit sink rejected event",
				logger.String("sink", s.Name),
				logger.String("action", string(event.Action)),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListEvents queries the first readable sink; with none configured it returns an empty list.
func (m *MultiSink) ListEvents(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if m.reader == nil {
		return []models.AuditEvent{}, nil
	}
	return m.reader.ListEvents(ctx, limit)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.Service.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
