package models

import (
	"time"

	"github.com/turtacn/certgate/pkg/constants"
)

// UploadedCSR describes a certificate signing request persisted to the pending directory.
type UploadedCSR struct {
	StoredName   string                    `json:"storedName"`
	Path         string                    `json:"-"`
	DeclaredType constants.CertificateType `json:"type"`
	Size         int64                     `json:"size"`
	UploadedAt   time.Time                 `json:"uploadedAt"`
}
