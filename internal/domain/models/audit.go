package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/certgate/pkg/constants"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// AuditEvent represents a single audit trail event.
type AuditEvent struct {
	ID        uuid.UUID             `json:"id" gorm:"type:uuid;primaryKey"`
	Timestamp time.Time             `json:"timestamp" gorm:"index"`
	Actor     string                `json:"actor" gorm:"size:128"`
	Action    constants.AuditAction `json:"action" gorm:"size:64;index"`
	Target    string                `json:"target" gorm:"size:255"`
	Result    string                `json:"result" gorm:"size:16"`
	Detail    string                `json:"detail,omitempty" gorm:"type:text"`
	ClientIP  string                `json:"clientIp,omitempty" gorm:"size:64"`
	RequestID string                `json:"requestId,omitempty" gorm:"size:64"`
}

// TableName pins the gorm table name.
func (AuditEvent) TableName() string { return "audit_events" }

// NewAuditEvent creates a new audit event.
func NewAuditEvent(action constants.AuditAction, target string, result string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Target:    target,
		Result:    result,
	}
}

// WithActor sets the actor for the audit event.
func (a *AuditEvent) WithActor(actor string) *AuditEvent {
	a.Actor = actor
	return a
}

// WithContextInfo sets request-related information.
func (a *AuditEvent) WithContextInfo(ip, requestID string) *AuditEvent {
	a.ClientIP = ip
	a.RequestID = requestID
	return a
}

// WithDetail sets a free-form detail message.
func (a *AuditEvent) WithDetail(detail string) *AuditEvent {
	a.Detail = detail
	return a
}
