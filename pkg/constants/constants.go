// Package constants defines system-wide constants for the certgate service.
package constants

import "time"

// ================================================================================
// Certificate Constants
// ================================================================================

// CertificateType is the usage class of an issued certificate.
type CertificateType string

const (
	// CertificateTypeServer marks certificates used for TLS server authentication.
	CertificateTypeServer CertificateType = "server"
	// CertificateTypeClient marks certificates used for TLS client authentication.
	CertificateTypeClient CertificateType = "client"
)

// Valid reports whether t is one of the known certificate types.
func (t CertificateType) Valid() bool {
	return t == CertificateTypeServer || t == CertificateTypeClient
}

// CertificateStatus is the inventory status of a certificate artifact.
type CertificateStatus string

const (
	// CertificateStatusActive means the artifact was inspected successfully.
	CertificateStatusActive CertificateStatus = "active"
	// CertificateStatusUnknown means the artifact could not be inspected.
	CertificateStatusUnknown CertificateStatus = "unknown"
)

// ================================================================================
// Sandbox Operations
// ================================================================================

// Names of the operations the command sandbox is allowed to run.
const (
	OpCheckCA           = "check-ca"
	OpCreateCA          = "create-ca"
	OpCreateServer      = "create-server"
	OpCreateClient      = "create-client"
	OpListCertificates  = "list-certificates"
	OpRenewCertificate  = "renew-certificate"
	OpProcessCSR        = "process-csr"
	OpRevokeCertificate = "revoke-certificate"
)

// ================================================================================
// Timeouts & Limits
// ================================================================================

const (
	// DefaultExecTimeout bounds a mutating toolchain invocation.
	DefaultExecTimeout = 30 * time.Second

	// DefaultIntrospectionTimeout bounds a read-only certificate inspection.
	DefaultIntrospectionTimeout = 5 * time.Second

	// SessionTTL is the lifetime of an admin session token.
	SessionTTL = 24 * time.Hour

	// MaxCSRUploadBytes is the largest accepted CSR upload (10 MiB).
	MaxCSRUploadBytes = 10 << 20

	// DefaultSandboxPath is the minimal PATH handed to child processes.
	DefaultSandboxPath = "/usr/local/bin:/usr/bin:/bin"

	// DefaultOrganizationalUnit is used when a request omits the OU.
	DefaultOrganizationalUnit = "IT Department"

	// BcryptCost is the work factor used by the hash-password command.
	BcryptCost = 12

	// MinUsernameLength and MinPasswordLength gate the login endpoint.
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// ================================================================================
// Session Constants
// ================================================================================

// RoleAdmin is the only role issued by the access gate.
const RoleAdmin = "admin"

// DefaultIssuer is the "iss" claim of session tokens.
const DefaultIssuer = "certgate"

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type for request-scoped context keys.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyTraceID   ContextKey = "trace_id"
	ContextKeySession   ContextKey = "session"
	ContextKeyClientIP  ContextKey = "client_ip"
)

// HTTP headers used across the API.
const (
	HeaderRequestID       = "X-Request-ID"
	HeaderSecurityWarning = "X-Security-Warning"
)

// ================================================================================
// Audit Actions
// ================================================================================

// AuditAction names a mutating operation recorded in the audit trail.
type AuditAction string

const (
	AuditActionLogin       AuditAction = "auth.login"
	AuditActionLogout      AuditAction = "auth.logout"
	AuditActionVarsUpdate  AuditAction = "config.vars.update"
	AuditActionCACreate    AuditAction = "ca.create"
	AuditActionCAKeyExport AuditAction = "ca.key.download"
	AuditActionCertIssue   AuditAction = "certificate.issue"
	AuditActionCertRenew   AuditAction = "certificate.renew"
	AuditActionCertDelete  AuditAction = "certificate.delete"
	AuditActionCertExport  AuditAction = "certificate.export"
	AuditActionKeyDownload AuditAction = "certificate.key.download"
	AuditActionCSRIngest   AuditAction = "csr.ingest"
)
