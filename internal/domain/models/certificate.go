package models

import (
	"time"

	"github.com/turtacn/certgate/pkg/constants"
)

// CertificateRecord is one issued certificate as seen by the inventory.
type CertificateRecord struct {
	Name      string                      `json:"name"`
	Type      constants.CertificateType   `json:"type"`
	CreatedAt *time.Time                  `json:"created"`
	ExpiresAt *time.Time                  `json:"expires"`
	Subject   string                      `json:"subject"`
	Status    constants.CertificateStatus `json:"status"`
}

// UnknownCertificate is the record for an artifact that could not be inspected.
func UnknownCertificate(name string) CertificateRecord {
	return CertificateRecord{
		Name:   name,
		Type:   constants.CertificateTypeServer,
		Status: constants.CertificateStatusUnknown,
	}
}

// CertificateMetadata is what an inspector extracts from one certificate file.
type CertificateMetadata struct {
	Subject   string
	NotBefore time.Time
	NotAfter  time.Time
}

// ArtifactKind selects which file of a certificate is downloaded.
type ArtifactKind string

const (
	ArtifactCert ArtifactKind = "cert"
	ArtifactKey  ArtifactKind = "key"
	ArtifactCA   ArtifactKind = "ca"
)

// Artifact is a resolved downloadable file.
type Artifact struct {
	Path     string
	Filename string
	Private  bool
}
