package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/turtacn/certgate/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	PKI       PKIConfig       `mapstructure:"pki"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Inspector InspectorConfig `mapstructure:"inspector"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCEnabled     bool          `mapstructure:"grpc_enabled"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	BasePath        string        `mapstructure:"base_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
}

// Addr returns the HTTP listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig configures the single administrator credential and session signing.
// AdminPasswordHash (bcrypt) takes precedence over AdminPassword when both are set.
type AuthConfig struct {
	AdminUsername     string        `mapstructure:"admin_username"`
	AdminPassword     string        `mapstructure:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
}

// HasCredential reports whether an administrator credential has been configured.
func (c AuthConfig) HasCredential() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// Revocation policies for the delete workflow.
const (
	RevokePolicyBestEffort = "best_effort"
	RevokePolicyRequired   = "required"
)

type PKIConfig struct {
	Root          string `mapstructure:"root"`
	PendingDir    string `mapstructure:"pending_dir"`
	ExportDir     string `mapstructure:"export_dir"`
	RevokePolicy  string `mapstructure:"revoke_policy"`
	Bootstrap     bool   `mapstructure:"bootstrap"`
	EasyRSASource string `mapstructure:"easyrsa_source"`
	TemplateDir   string `mapstructure:"template_dir"`
}

// PendingPath returns the CSR upload directory, defaulting to <root>/pending-requests.
func (c PKIConfig) PendingPath() string {
	if c.PendingDir != "" {
		return c.PendingDir
	}
	return filepath.Join(c.Root, "pending-requests")
}

type SandboxConfig struct {
	Binary               string            `mapstructure:"binary"`
	Workdir              string            `mapstructure:"workdir"`
	Path                 string            `mapstructure:"path"`
	Timeout              time.Duration     `mapstructure:"timeout"`
	IntrospectionTimeout time.Duration     `mapstructure:"introspection_timeout"`
	ExtraEnv             map[string]string `mapstructure:"extra_env"`
}

// Inspector backends.
const (
	InspectorOpenSSL = "openssl"
	InspectorNative  = "native"
)

type InspectorConfig struct {
	Backend       string        `mapstructure:"backend"`
	OpenSSLBinary string        `mapstructure:"openssl_binary"`
	Concurrency   int           `mapstructure:"concurrency"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Watch         bool          `mapstructure:"watch"`
}

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Backend  string        `mapstructure:"backend"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type RedisConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

// Audit store drivers.
const (
	AuditDriverSQLite   = "sqlite"
	AuditDriverPostgres = "postgres"
)

type AuditConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Driver     string      `mapstructure:"driver"`
	SQLitePath string      `mapstructure:"sqlite_path"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // in minutes
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// VaultConfig locates a KV v2 secret holding jwt_secret and admin_password_hash.
type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Validation(fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.GRPCEnabled && (c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535) {
		return errors.Validation(fmt.Sprintf("server.grpc_port %d out of range", c.Server.GRPCPort))
	}
	if c.Auth.AdminUsername == "" {
		return errors.Validation("auth.admin_username is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.Validation("auth.session_ttl must be positive")
	}
	if c.PKI.Root == "" {
		return errors.Validation("pki.root is required")
	}
	switch c.PKI.RevokePolicy {
	case RevokePolicyBestEffort, RevokePolicyRequired:
	default:
		return errors.Validation(fmt.Sprintf("pki.revoke_policy %q must be best_effort or required", c.PKI.RevokePolicy))
	}
	if c.Sandbox.Binary == "" {
		return errors.Validation("sandbox.binary is required")
	}
	if c.Sandbox.Timeout <= 0 || c.Sandbox.IntrospectionTimeout <= 0 {
		return errors.Validation("sandbox timeouts must be positive")
	}
	switch c.Inspector.Backend {
	case InspectorOpenSSL, InspectorNative:
	default:
		return errors.Validation(fmt.Sprintf("inspector.backend %q must be openssl or native", c.Inspector.Backend))
	}
	if c.Inspector.Concurrency < 1 {
		return errors.Validation("inspector.concurrency must be at least 1")
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitMemory:
		case RateLimitRedis:
			if len(c.Redis.Addresses) == 0 {
				return errors.Validation("redis.addresses is required for the redis rate limit backend")
			}
		default:
			return errors.Validation(fmt.Sprintf("rate_limit.backend %q must be memory or redis", c.RateLimit.Backend))
		}
		if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
			return errors.Validation("rate_limit.requests and rate_limit.window must be positive")
		}
	}
	if c.Audit.Enabled {
		switch c.Audit.Driver {
		case AuditDriverSQLite, AuditDriverPostgres:
		default:
			return errors.Validation(fmt.Sprintf("audit.driver %q must be sqlite or postgres", c.Audit.Driver))
		}
		if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
			return errors.Validation("audit.kafka.brokers is required when kafka is enabled")
		}
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return errors.Validation("vault.address is required when vault is enabled")
	}
	return nil
}
