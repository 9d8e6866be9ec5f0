package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth configuration
	Auth AuthConfig

	// Mail configuration
	Mail MailConfig

	// Observability configuration
	Observability ObservabilityConfig

	// SelfHosted disables seat autoscaling and billing gateway calls
	SelfHosted bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Rate limiting on authenticated routes
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	// SigningKey signs access tokens
	SigningKey string

	// InviteSigningKey signs organization invite tokens
	InviteSigningKey string

	// InviteLifetime bounds how long an invite link stays valid
	InviteLifetime time.Duration

	// InviteCleanupSchedule is the cron expression for expired invite
	// sweeps. Empty disables the job.
	InviteCleanupSchedule string
}

// MailConfig holds SMTP settings for invite and confirmation mail
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string

	// ReplyToAddress is advertised on outbound membership mail
	ReplyToAddress string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Mail:          loadMailConfig(),
		Observability: loadObservabilityConfig(),
		SelfHosted:    getEnvBool("COVAULT_SELF_HOSTED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("COVAULT_HOST", "0.0.0.0"),
		Port:            getEnv("COVAULT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("COVAULT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("COVAULT_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("COVAULT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("COVAULT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("COVAULT_HEALTH_PORT", "9090"),

		RateLimitRequests: getEnvInt("COVAULT_RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("COVAULT_RATE_LIMIT_WINDOW", time.Minute),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("COVAULT_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("COVAULT_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("COVAULT_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("COVAULT_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if redisURL := getEnv("COVAULT_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("COVAULT_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("COVAULT_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("COVAULT_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("COVAULT_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadAuthConfig loads token signing configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SigningKey:            getEnv("COVAULT_SIGNING_KEY", ""),
		InviteSigningKey:      getEnv("COVAULT_INVITE_SIGNING_KEY", ""),
		InviteLifetime:        getEnvDuration("COVAULT_INVITE_LIFETIME", 5*24*time.Hour),
		InviteCleanupSchedule: getEnv("COVAULT_INVITE_CLEANUP_SCHEDULE", "0 3 * * *"),
	}
}

// loadMailConfig loads SMTP configuration from environment
func loadMailConfig() MailConfig {
	return MailConfig{
		Host:           getEnv("COVAULT_SMTP_HOST", "localhost"),
		Port:           getEnvInt("COVAULT_SMTP_PORT", 587),
		Username:       getEnv("COVAULT_SMTP_USERNAME", ""),
		Password:       getEnv("COVAULT_SMTP_PASSWORD", ""),
		FromAddress:    getEnv("COVAULT_MAIL_FROM", "no-reply@covault.local"),
		FromName:       getEnv("COVAULT_MAIL_FROM_NAME", "Covault"),
		ReplyToAddress: getEnv("COVAULT_MAIL_REPLY_TO", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("COVAULT_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("COVAULT_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit request count must be positive")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Auth.SigningKey == "" {
		return fmt.Errorf("signing key is required")
	}
	if c.Auth.InviteSigningKey == "" {
		return fmt.Errorf("invite signing key is required")
	}
	if c.Auth.InviteLifetime <= 0 {
		return fmt.Errorf("invite lifetime must be positive")
	}

	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.Mail.Port)
	}

	return nil
}

// parseLogLevel parses a log level string
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
