// Package kms loads process secrets from HashiCorp Vault.
package kms

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/pkg/logger"
)

// Field names inside the KV v2 secret.
const (
	FieldJWTSecret         = "jwt_secret"
	FieldAdminPasswordHash = "admin_password_hash"
)

// Secrets holds the values read from Vault. Empty fields were absent.
type Secrets struct {
	JWTSecret         string
	AdminPasswordHash string
}

// VaultSecretSource reads the session secret and admin credential hash from a KV v2 mount.
type VaultSecretSource struct {
	client *vault.Client
	cfg    config.VaultConfig
	logger logger.Logger
}

// NewVaultSecretSource creates a Vault client for cfg.
func NewVaultSecretSource(cfg config.VaultConfig, log logger.Logger) (*VaultSecretSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &VaultSecretSource{
		client: client,
		cfg:    cfg,
		logger: log.WithComponent("VaultSecretSource"),
	}, nil
}

// Load fetches the secret at mount_path/secret_path.
func (s *VaultSecretSource) Load(ctx context.Context) (*Secrets, error) {
	secret, err := s.client.KVv2(s.cfg.MountPath).Get(ctx, s.cfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s from vault: %w", s.cfg.MountPath, s.cfg.SecretPath, err)
	}

	out := &Secrets{}
	if secret != nil && secret.Data != nil {
		out.JWTSecret, _ = secret.Data[FieldJWTSecret].(string)
		out.AdminPasswordHash, _ = secret.Data[FieldAdminPasswordHash].(string)
	}
	s.logger.Info(ctx, "Loaded secrets from vault",
		logger.String("path", s.cfg.MountPath+"/"+s.cfg.SecretPath),
		logger.Bool("jwt_secret", out.JWTSecret != ""),
		logger.Bool("admin_hash", out.AdminPasswordHash != ""),
	)
	return out, nil
}

// Apply overlays non-empty vault values onto the auth configuration.
func (s *Secrets) Apply(auth *config.AuthConfig) {
	if s.JWTSecret != "" {
		auth.JWTSecret = s.JWTSecret
	}
	if s.AdminPasswordHash != "" {
		auth.AdminPasswordHash = s.AdminPasswordHash
	}
}
