package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
)

// opensslTimeLayout matches "notBefore=Jan  2 15:04:05 2006 GMT".
const opensslTimeLayout = "Jan _2 15:04:05 2006 MST"

// ekuHeader is the line openssl prints before the extended key usage list.
const ekuHeader = "X509v3 Extended Key Usage"

// ekuContextLines is how many lines after the header are kept.
const ekuContextLines = 3

// OpenSSLInspector reads certificate metadata by running `openssl x509`.
type OpenSSLInspector struct {
	binary  string
	runner  *Runner
	timeout time.Duration
	metrics service.Metrics
}

// NewOpenSSLInspector creates an inspector running binary (usually "openssl").
func NewOpenSSLInspector(binary string, runner *Runner, timeout time.Duration, metrics service.Metrics) *OpenSSLInspector {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	return &OpenSSLInspector{binary: binary, runner: runner, timeout: timeout, metrics: metrics}
}

var _ service.CertificateInspector = (*OpenSSLInspector)(nil)

func (i *OpenSSLInspector) run(ctx context.Context, args ...string) (string, error) {
	res := i.runner.Run(ctx, i.timeout, i.binary, args...)
	i.metrics.RecordInspection("openssl", res.Err == nil && !res.TimedOut, res.Duration)
	if res.TimedOut {
		return "", fmt.Errorf("openssl timed out after %s", i.timeout)
	}
	if res.Err != nil {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = res.Err.Error()
		}
		return "", fmt.Errorf("openssl: %s", msg)
	}
	return res.Stdout, nil
}

// Inspect returns subject and validity window.
func (i *OpenSSLInspector) Inspect(ctx context.Context, path string) (*models.CertificateMetadata, error) {
	out, err := i.run(ctx, "x509", "-in", path, "-noout", "-startdate", "-enddate", "-subject")
	if err != nil {
		return nil, err
	}
	return parseDatesAndSubject(out)
}

// ExtendedKeyUsage returns the extension header plus the following lines, or "".
func (i *OpenSSLInspector) ExtendedKeyUsage(ctx context.Context, path string) (string, error) {
	out, err := i.run(ctx, "x509", "-in", path, "-noout", "-text")
	if err != nil {
		return "", err
	}
	return extractEKU(out), nil
}

// Describe returns the full text dump.
func (i *OpenSSLInspector) Describe(ctx context.Context, path string) (string, error) {
	return i.run(ctx, "x509", "-in", path, "-noout", "-text")
}

func parseDatesAndSubject(out string) (*models.CertificateMetadata, error) {
	meta := &models.CertificateMetadata{}
	var haveStart, haveEnd bool

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "notbefore":
			t, err := time.Parse(opensslTimeLayout, value)
			if err != nil {
				return nil, fmt.Errorf("parse notBefore %q: %w", value, err)
			}
			meta.NotBefore, haveStart = t.UTC(), true
		case "notafter":
			t, err := time.Parse(opensslTimeLayout, value)
			if err != nil {
				return nil, fmt.Errorf("parse notAfter %q: %w", value, err)
			}
			meta.NotAfter, haveEnd = t.UTC(), true
		case "subject":
			meta.Subject = value
		}
	}
	if !haveStart || !haveEnd {
		return nil, fmt.Errorf("openssl output is missing validity dates")
	}
	return meta, nil
}

func extractEKU(text string) string {
	lines := strings.Split(text, "\n")
	for idx, line := range lines {
		if !strings.Contains(line, ekuHeader) {
			continue
		}
		end := idx + 1 + ekuContextLines
		if end > len(lines) {
			end = len(lines)
		}
		return strings.TrimRight(strings.Join(lines[idx:end], "\n"), "\n")
	}
	return ""
}
