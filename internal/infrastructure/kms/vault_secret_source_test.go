package kms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/infrastructure/kms"
	"github.com/turtacn/certgate/pkg/logger"
)

func newFakeVault(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/certgate", r.URL.Path)
		assert.Equal(t, "dev-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestVaultSecretSource_Load(t *testing.T) {
	ts := newFakeVault(t, http.StatusOK, `{"data":{"data":{"jwt_secret":"s3cret","admin_password_hash":"$2a$12$abc"},"metadata":{"version":1}}}`)

	src, err := kms.NewVaultSecretSource(config.VaultConfig{
		Address: ts.URL, Token: "dev-token", MountPath: "secret", SecretPath: "certgate",
	}, logger.NewNopLogger())
	require.NoError(t, err)

	secrets, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secrets.JWTSecret)
	assert.Equal(t, "$2a$12$abc", secrets.AdminPasswordHash)

	auth := config.AuthConfig{JWTSecret: "from-env", AdminPassword: "plain"}
	secrets.Apply(&auth)
	assert.Equal(t, "s3cret", auth.JWTSecret)
	assert.Equal(t, "$2a$12$abc", auth.AdminPasswordHash)
	assert.Equal(t, "plain", auth.AdminPassword)
}

func TestVaultSecretSource_Load_Missing(t *testing.T) {
	ts := newFakeVault(t, http.StatusNotFound, `{"errors":[]}`)

	src, err := kms.NewVaultSecretSource(config.VaultConfig{
		Address: ts.URL, Token: "dev-token", MountPath: "secret", SecretPath: "certgate",
	}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	assert.Error(t, err)
}
