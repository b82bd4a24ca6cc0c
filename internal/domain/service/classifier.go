package service

import (
	"strings"

	"github.com/turtacn/certgate/pkg/constants"
)

// Evidence is everything the classifier may look at for one certificate.
type Evidence struct {
	// Name is the artifact base name without extension.
	Name string
	// Subject is the certificate subject line, possibly empty.
	Subject string
	// ExtendedKeyUsage is the extension text, "" when absent or unreadable.
	ExtendedKeyUsage string
}

// Rule is one classification rule. Rules are evaluated in order; the first match wins.
type Rule struct {
	Name  string
	Match func(Evidence) bool
	Type  constants.CertificateType
}

// Extended key usage wording as printed by openssl.
const (
	EKUClientAuth = "TLS Web Client Authentication"
	EKUServerAuth = "TLS Web Server Authentication"
)

var clientNameHints = []string{"client", "user", "admin"}

// Classifier assigns server/client usage to a certificate.
// Explicit key usage always outranks the naming heuristic.
type Classifier struct {
	rules    []Rule
	fallback constants.CertificateType
}

// NewClassifier returns the standard rule set.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []Rule{
			{
				Name:  "eku-client-auth",
				Match: func(e Evidence) bool { return strings.Contains(e.ExtendedKeyUsage, EKUClientAuth) },
				Type:  constants.CertificateTypeClient,
			},
			{
				Name:  "eku-server-auth",
				Match: func(e Evidence) bool { return strings.Contains(e.ExtendedKeyUsage, EKUServerAuth) },
				Type:  constants.CertificateTypeServer,
			},
			{
				Name:  "name-or-subject-hint",
				Match: matchesClientHint,
				Type:  constants.CertificateTypeClient,
			},
		},
		fallback: constants.CertificateTypeServer,
	}
}

// Classify returns the type of the first matching rule, or server.
func (c *Classifier) Classify(e Evidence) constants.CertificateType {
	for _, r := range c.rules {
		if r.Match(e) {
			return r.Type
		}
	}
	return c.fallback
}

// Rules exposes the rule order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// matchesClientHint is case-sensitive: "Admin01" carries no hint.
func matchesClientHint(e Evidence) bool {
	for _, hint := range clientNameHints {
		if strings.Contains(e.Name, hint) {
			return true
		}
	}
	return strings.Contains(e.Subject, "@")
}
