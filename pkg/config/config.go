package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/courseloop/authd/pkg/kvstore"
	"github.com/courseloop/authd/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       kvstore.Config
	Auth          AuthConfig
	Mirror        MirrorConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Ops server (separate port for health probes and /metrics)
	OpsPort string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	TokenTTL        time.Duration
	PasswordScheme  string // "bcrypt" or "sha256-legacy"
	PolicyFile      string // optional registration policy YAML
	JanitorSchedule string
	ProfileCacheSize int
}

// MirrorConfig holds purchase mirror settings
type MirrorConfig struct {
	Enabled        bool
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Mirror:        loadMirrorConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AUTHD_HOST", "0.0.0.0"),
		Port:            getEnv("AUTHD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AUTHD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AUTHD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AUTHD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AUTHD_SHUTDOWN_TIMEOUT", 30*time.Second),
		OpsPort:         getEnv("AUTHD_OPS_PORT", "9090"),
	}
}

func loadStorageConfig() kvstore.Config {
	cfg := kvstore.DefaultConfig()

	if storageType := getEnv("AUTHD_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	if redisURL := getEnv("AUTHD_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("AUTHD_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("AUTHD_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if poolSize := getEnvInt("AUTHD_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.RedisPoolSize = poolSize
	}

	if driver := getEnv("AUTHD_SQL_DRIVER", ""); driver != "" {
		cfg.SQLDriver = driver
	}
	if dsn := getEnv("AUTHD_SQL_DSN", ""); dsn != "" {
		cfg.SQLDSN = dsn
	}

	if attempts := getEnvInt("AUTHD_STORAGE_RETRY_ATTEMPTS", 0); attempts > 0 {
		cfg.RetryMaxAttempts = attempts
	}
	if interval := getEnvDuration("AUTHD_STORAGE_RETRY_INTERVAL", 0); interval > 0 {
		cfg.RetryInitialInterval = interval
	}

	return cfg
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenTTL:         getEnvDuration("AUTHD_TOKEN_TTL", 60*time.Minute),
		PasswordScheme:   getEnv("AUTHD_PASSWORD_SCHEME", "bcrypt"),
		PolicyFile:       getEnv("AUTHD_REGISTRATION_POLICY_FILE", ""),
		JanitorSchedule:  getEnv("AUTHD_JANITOR_SCHEDULE", "@every 15m"),
		ProfileCacheSize: getEnvInt("AUTHD_PROFILE_CACHE_SIZE", 1024),
	}
}

func loadMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Enabled:        getEnvBool("AUTHD_MIRROR_ENABLED", false),
		S3Endpoint:     getEnv("AUTHD_S3_ENDPOINT", ""),
		S3Region:       getEnv("AUTHD_S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("AUTHD_S3_BUCKET", ""),
		S3AccessKey:    getEnv("AUTHD_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("AUTHD_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("AUTHD_S3_USE_PATH_STYLE", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("AUTHD_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("AUTHD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("AUTHD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("AUTHD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("AUTHD_OTEL_SERVICE_NAME", "authd"),
		OTelServiceVersion: getEnv("AUTHD_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("AUTHD_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.OpsPort == "" {
		return fmt.Errorf("ops port is required")
	}
	if c.Server.Port == c.Server.OpsPort {
		return fmt.Errorf("server port and ops port must be different")
	}

	switch c.Storage.Type {
	case "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis storage")
		}
	case "postgres":
		if c.Storage.SQLDSN == "" {
			return fmt.Errorf("SQL DSN is required for postgres storage")
		}
	case "sqlite":
		if c.Storage.SQLDSN == "" {
			return fmt.Errorf("SQL DSN is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, redis, postgres, or sqlite)", c.Storage.Type)
	}

	switch c.Auth.PasswordScheme {
	case "bcrypt", "sha256-legacy":
	default:
		return fmt.Errorf("invalid password scheme: %s", c.Auth.PasswordScheme)
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Mirror.Enabled && c.Mirror.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required when the purchase mirror is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
