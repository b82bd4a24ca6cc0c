package sandbox

import (
	"fmt"
	"time"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/service"
)

// NewInspector builds the inspector selected by cfg.Backend.
func NewInspector(cfg config.InspectorConfig, runner *Runner, timeout time.Duration, metrics service.Metrics) (service.CertificateInspector, error) {
	switch cfg.Backend {
	case config.InspectorOpenSSL, "":
		return NewOpenSSLInspector(cfg.OpenSSLBinary, runner, timeout, metrics), nil
	case config.InspectorNative:
		return NewNativeInspector(metrics), nil
	default:
		return nil, fmt.Errorf("unknown inspector backend %q", cfg.Backend)
	}
}
