package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/pkg/errors"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err, "an explicit config file that does not exist is an error")
	assert.Nil(t, cfg)

	for _, legacy := range legacyEnv {
		t.Setenv(legacy, "")
	}
	t.Chdir(t.TempDir())
	cfg, err = LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, "/etc/easy-rsa", cfg.PKI.Root)
	assert.Equal(t, "/etc/easy-rsa/pending-requests", cfg.PKI.PendingPath())
	assert.Equal(t, RevokePolicyBestEffort, cfg.PKI.RevokePolicy)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.IntrospectionTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, InspectorOpenSSL, cfg.Inspector.Backend)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "certgate.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 8443
pki:
  root: /srv/pki
  revoke_policy: required
inspector:
  backend: native
`), 0o600))

	t.Setenv("CERTGATE_SANDBOX_TIMEOUT", "45s")
	t.Setenv("ADMIN_USER", "operator")
	t.Setenv("JWT_SECRET", "from-legacy-env")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "/srv/pki", cfg.PKI.Root)
	assert.Equal(t, RevokePolicyRequired, cfg.PKI.RevokePolicy)
	assert.Equal(t, InspectorNative, cfg.Inspector.Backend)
	assert.Equal(t, 45*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, "operator", cfg.Auth.AdminUsername)
	assert.Equal(t, "from-legacy-env", cfg.Auth.JWTSecret)
}

func TestLoadConfig_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "4000")
	t.Setenv("CERTGATE_SERVER_PORT", "5000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestConfigValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := LoadConfig("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad revoke policy", func(c *Config) { c.PKI.RevokePolicy = "sometimes" }},
		{"bad inspector", func(c *Config) { c.Inspector.Backend = "gnutls" }},
		{"redis without addresses", func(c *Config) { c.RateLimit.Backend = RateLimitRedis }},
		{"kafka without brokers", func(c *Config) { c.Audit.Kafka.Enabled = true }},
		{"vault without address", func(c *Config) { c.Vault.Enabled = true }},
		{"zero timeout", func(c *Config) { c.Sandbox.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeValidation))
		})
	}
}
