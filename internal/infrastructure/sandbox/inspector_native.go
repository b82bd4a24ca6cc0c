package sandbox

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
)

// extKeyUsageNames maps ExtKeyUsage values to the names openssl prints, so the
// classifier sees the same text from both backends.
var extKeyUsageNames = map[x509.ExtKeyUsage]string{
	x509.ExtKeyUsageServerAuth:      service.EKUServerAuth,
	x509.ExtKeyUsageClientAuth:      service.EKUClientAuth,
	x509.ExtKeyUsageCodeSigning:     "Code Signing",
	x509.ExtKeyUsageEmailProtection: "E-mail Protection",
	x509.ExtKeyUsageTimeStamping:    "Time Stamping",
	x509.ExtKeyUsageOCSPSigning:     "OCSP Signing",
	x509.ExtKeyUsageAny:             "Any Extended Key Usage",
}

// NativeInspector parses certificates in-process with crypto/x509.
type NativeInspector struct {
	metrics service.Metrics
}

// NewNativeInspector creates an in-process inspector.
func NewNativeInspector(metrics service.Metrics) *NativeInspector {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	return &NativeInspector{metrics: metrics}
}

var _ service.CertificateInspector = (*NativeInspector)(nil)

func (i *NativeInspector) load(path string) (cert *x509.Certificate, err error) {
	start := time.Now()
	defer func() { i.metrics.RecordInspection("native", err == nil, time.Since(start)) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		// easy-rsa issued files may carry a text dump before the PEM block.
		idx := strings.Index(string(data), "-----BEGIN CERTIFICATE-----")
		if idx < 0 {
			return nil, fmt.Errorf("%s: no PEM certificate found", path)
		}
		block, _ = pem.Decode(data[idx:])
		if block == nil {
			return nil, fmt.Errorf("%s: malformed PEM certificate", path)
		}
	}
	return x509.ParseCertificate(block.Bytes)
}

// Inspect returns subject and validity window.
func (i *NativeInspector) Inspect(_ context.Context, path string) (*models.CertificateMetadata, error) {
	cert, err := i.load(path)
	if err != nil {
		return nil, err
	}
	return &models.CertificateMetadata{
		Subject:   cert.Subject.String(),
		NotBefore: cert.NotBefore.UTC(),
		NotAfter:  cert.NotAfter.UTC(),
	}, nil
}

// ExtendedKeyUsage renders the EKU extension the way openssl does.
func (i *NativeInspector) ExtendedKeyUsage(_ context.Context, path string) (string, error) {
	cert, err := i.load(path)
	if err != nil {
		return "", err
	}
	return renderEKU(cert), nil
}

// Describe returns a condensed text dump of the certificate.
func (i *NativeInspector) Describe(_ context.Context, path string) (string, error) {
	cert, err := i.load(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Certificate:\n")
	fmt.Fprintf(&b, "    Serial Number: %s\n", cert.SerialNumber.Text(16))
	fmt.Fprintf(&b, "    Signature Algorithm: %s\n", cert.SignatureAlgorithm)
	fmt.Fprintf(&b, "    Issuer: %s\n", cert.Issuer)
	fmt.Fprintf(&b, "    Validity\n")
	fmt.Fprintf(&b, "        Not Before: %s\n", cert.NotBefore.UTC().Format(opensslTimeLayout))
	fmt.Fprintf(&b, "        Not After : %s\n", cert.NotAfter.UTC().Format(opensslTimeLayout))
	fmt.Fprintf(&b, "    Subject: %s\n", cert.Subject)
	fmt.Fprintf(&b, "    Public Key Algorithm: %s\n", cert.PublicKeyAlgorithm)
	if cert.IsCA {
		fmt.Fprintf(&b, "    X509v3 Basic Constraints: critical\n        CA:TRUE\n")
	}
	if sans := formatSANs(cert); len(sans) > 0 {
		fmt.Fprintf(&b, "    X509v3 Subject Alternative Name:\n        %s\n", strings.Join(sans, ", "))
	}
	if eku := renderEKU(cert); eku != "" {
		fmt.Fprintf(&b, "    %s\n", eku)
	}
	return b.String(), nil
}

func renderEKU(cert *x509.Certificate) string {
	if len(cert.ExtKeyUsage) == 0 && len(cert.UnknownExtKeyUsage) == 0 {
		return ""
	}
	names := make([]string, 0, len(cert.ExtKeyUsage)+len(cert.UnknownExtKeyUsage))
	for _, eku := range cert.ExtKeyUsage {
		if name, ok := extKeyUsageNames[eku]; ok {
			names = append(names, name)
		}
	}
	for _, oid := range cert.UnknownExtKeyUsage {
		names = append(names, oid.String())
	}
	return ekuHeader + ": \n                " + strings.Join(names, ", ")
}

// formatSANs extracts all Subject Alternative Names from a certificate.
func formatSANs(cert *x509.Certificate) []string {
	var sans []string
	for _, dns := range cert.DNSNames {
		sans = append(sans, "DNS:"+dns)
	}
	for _, ip := range cert.IPAddresses {
		sans = append(sans, "IP Address:"+ip.String())
	}
	for _, email := range cert.EmailAddresses {
		sans = append(sans, "email:"+email)
	}
	return sans
}
