// Package pkistore knows the on-disk layout of the easy-rsa key store and
// provides the inventory, locking, bootstrap and export helpers built on it.
package pkistore

import (
	"path/filepath"
	"strings"
)

const (
	certExt = ".crt"
	keyExt  = ".key"
	reqExt  = ".req"
)

// Layout resolves paths inside an easy-rsa directory.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root (e.g. /etc/easy-rsa).
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) PKIDir() string      { return filepath.Join(l.Root, "pki") }
func (l Layout) VarsFile() string    { return filepath.Join(l.Root, "vars") }
func (l Layout) CACert() string      { return filepath.Join(l.PKIDir(), "ca.crt") }
func (l Layout) CAKey() string       { return filepath.Join(l.PKIDir(), "private", "ca.key") }
func (l Layout) IssuedDir() string   { return filepath.Join(l.PKIDir(), "issued") }
func (l Layout) PrivateDir() string  { return filepath.Join(l.PKIDir(), "private") }
func (l Layout) RequestsDir() string { return filepath.Join(l.PKIDir(), "reqs") }

// IssuedCert returns pki/issued/<name>.crt.
func (l Layout) IssuedCert(name string) string {
	return filepath.Join(l.IssuedDir(), filepath.Base(name)+certExt)
}

// PrivateKey returns pki/private/<name>.key.
func (l Layout) PrivateKey(name string) string {
	return filepath.Join(l.PrivateDir(), filepath.Base(name)+keyExt)
}

// Request returns pki/reqs/<name>.req.
func (l Layout) Request(name string) string {
	return filepath.Join(l.RequestsDir(), filepath.Base(name)+reqExt)
}

// Reserved reports whether name resolves onto the authority's own key, which
// shares pki/private with issued keys.
func (l Layout) Reserved(name string) bool {
	return l.PrivateKey(name) == l.CAKey()
}

// CertName strips the directory and .crt extension from an issued file name.
func CertName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), certExt)
}
