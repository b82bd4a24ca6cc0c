package service

import (
	"context"
	"time"

	"github.com/turtacn/certgate/internal/domain/models"
)

//go:generate mockery --name CommandExecutor --output mocks --outpkg mocks
// CommandExecutor runs allow-listed operations of the external PKI toolchain.
// CommandExecutor 运行外部 PKI 工具链中允许的操作。
type CommandExecutor interface {
	// Execute runs op with args. Toolchain failures are reported in ExecResult;
	// the error is non-nil only for an unknown operation or a timeout.
	Execute(ctx context.Context, op string, args []string) (*models.ExecResult, error)
}

//go:generate mockery --name CertificateInspector --output mocks --outpkg mocks
// CertificateInspector extracts metadata from a certificate file.
// CertificateInspector 从证书文件中提取元数据。
type CertificateInspector interface {
	// Inspect returns the subject and validity window.
	Inspect(ctx context.Context, path string) (*models.CertificateMetadata, error)
	// ExtendedKeyUsage returns the extended key usage block as text, "" when absent.
	ExtendedKeyUsage(ctx context.Context, path string) (string, error)
	// Describe returns the full human-readable dump of the certificate.
	Describe(ctx context.Context, path string) (string, error)
}

//go:generate mockery --name VarsStore --output mocks --outpkg mocks
// VarsStore reads and writes the toolchain's vars configuration file.
// VarsStore 读写工具链的 vars 配置文件。
type VarsStore interface {
	// Read returns the parsed config, or the defaults and false if the file is absent.
	Read() (models.CAConfig, bool, error)
	// Write validates and atomically replaces the file.
	Write(cfg models.CAConfig) error
}

// CertificateInventory enumerates issued certificates.
// CertificateInventory 枚举已颁发的证书。
type CertificateInventory interface {
	List(ctx context.Context) ([]models.CertificateRecord, error)
	// Invalidate drops any cached metadata.
	Invalidate()
}

//go:generate mockery --name AuditService --output mocks --outpkg mocks
// AuditService defines the interface for logging security-sensitive audit events.
// AuditService 定义了用于记录安全敏感审计事件的接口。
type AuditService interface {
	// LogEvent records an audit event.
	// LogEvent 记录审计事件。
	LogEvent(ctx context.Context, event models.AuditEvent) error
}

// AuditReader is implemented by audit sinks that can be queried.
type AuditReader interface {
	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

//go:generate mockery --name RateLimitService --output mocks --outpkg mocks
// RateLimitService defines the interface for rate limiting operations.
// RateLimitService 定义了速率限制操作的接口。
type RateLimitService interface {
	// Allow checks if a request identified by key is allowed.
	// It returns whether the request is allowed, the number of remaining requests, and the time when the limit resets.
	// Allow 检查请求是否被允许，返回剩余请求数以及限制重置的时间。
	Allow(ctx context.Context, key string) (allowed bool, remaining int, resetAt time.Time, err error)
}
