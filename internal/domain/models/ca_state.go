package models

import "time"

// CAStatus is the derived state of the certificate authority.
type CAStatus string

const (
	CAStatusNotFound  CAStatus = "not_found"
	CAStatusActive    CAStatus = "active"
	CAStatusReadError CAStatus = "read_error"
)

// CAState is recomputed from the filesystem on every request; it is never cached.
type CAState struct {
	Status    CAStatus   `json:"status"`
	CAFile    bool       `json:"caFile"`
	KeyFile   bool       `json:"keyFile"`
	Details   string     `json:"details,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	NotBefore *time.Time `json:"notBefore,omitempty"`
	NotAfter  *time.Time `json:"notAfter,omitempty"`
	Error     string     `json:"error,omitempty"`
	Vars      *CAConfig  `json:"config,omitempty"`
}

// Active reports whether the CA material is present and readable.
func (s *CAState) Active() bool {
	return s != nil && s.Status == CAStatusActive
}
