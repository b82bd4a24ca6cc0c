package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// legacyEnv maps config keys to the environment variables the original deployment used.
var legacyEnv = map[string]string{
	"server.port":              "PORT",
	"server.allowed_origins":   "FRONTEND_URL",
	"auth.admin_username":      "ADMIN_USER",
	"auth.admin_password":      "ADMIN_PASS",
	"auth.admin_password_hash": "ADMIN_PASS_HASH",
	"auth.jwt_secret":          "JWT_SECRET",
}

const envPrefix = "CERTGATE"

// Loader reads configuration from file, environment variables and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a viper instance. configFile may be empty, in which case
// certgate.yaml is searched in /etc/certgate/ and the working directory.
func NewLoader(configFile string) *Loader {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("certgate")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/certgate/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		// 新变量优先，旧变量兼容
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	return &Loader{v: v}
}

// Load reads the config file (if any), unmarshals and validates.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Validation("failed to read config file").WithCause(err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Validation("failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// WatchLogLevel re-applies log.level whenever the config file changes.
// Other keys require a restart.
func (l *Loader) WatchLogLevel(log logger.Logger) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		level := l.v.GetString("log.level")
		if err := log.SetLevel(level); err != nil {
			log.Warn(context.Background(), "Ignoring invalid log level from config change",
				logger.String("file", e.Name), logger.String("level", level))
			return
		}
		log.Info(context.Background(), "Log level reloaded", logger.String("level", level))
	})
	l.v.WatchConfig()
}

// LoadConfig is a shorthand for NewLoader(configFile).Load().
func LoadConfig(configFile string) (*Config, error) {
	return NewLoader(configFile).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.grpc_enabled", false)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3001"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.enable_pprof", false)

	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.admin_password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", constants.DefaultIssuer)
	v.SetDefault("auth.session_ttl", constants.SessionTTL.String())

	v.SetDefault("pki.root", "/etc/easy-rsa")
	v.SetDefault("pki.pending_dir", "")
	v.SetDefault("pki.export_dir", "/data/certificates")
	v.SetDefault("pki.revoke_policy", RevokePolicyBestEffort)
	v.SetDefault("pki.bootstrap", true)
	v.SetDefault("pki.easyrsa_source", "/usr/share/easy-rsa/easyrsa")
	v.SetDefault("pki.template_dir", "/opt/cert-manager/templates")

	v.SetDefault("sandbox.binary", "/usr/local/bin/cert-manager-api")
	v.SetDefault("sandbox.workdir", "/etc/easy-rsa")
	v.SetDefault("sandbox.path", constants.DefaultSandboxPath)
	v.SetDefault("sandbox.timeout", constants.DefaultExecTimeout.String())
	v.SetDefault("sandbox.introspection_timeout", constants.DefaultIntrospectionTimeout.String())
	v.SetDefault("sandbox.extra_env", map[string]string{})

	v.SetDefault("inspector.backend", InspectorOpenSSL)
	v.SetDefault("inspector.openssl_binary", "openssl")
	v.SetDefault("inspector.concurrency", 4)
	v.SetDefault("inspector.cache_ttl", "10m")
	v.SetDefault("inspector.watch", true)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", RateLimitMemory)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("redis.addresses", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.driver", AuditDriverSQLite)
	v.SetDefault("audit.sqlite_path", "/var/lib/certgate/audit.db")
	v.SetDefault("audit.kafka.enabled", false)
	v.SetDefault("audit.kafka.brokers", []string{})
	v.SetDefault("audit.kafka.topic", "certgate.audit")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "certgate")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "certgate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_conn_lifetime", 30)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "certgate")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "certgate")
	v.SetDefault("tracing.sample_ratio", 1.0)
}
