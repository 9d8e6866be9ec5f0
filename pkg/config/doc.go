// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings except the token signing keys, which must
// be supplied explicitly.
//
// # Configuration Structure
//
// Server settings:
//
//	COVAULT_HOST="0.0.0.0"
//	COVAULT_PORT="8080"
//	COVAULT_HEALTH_PORT="9090"
//	COVAULT_READ_TIMEOUT="15s"
//	COVAULT_WRITE_TIMEOUT="15s"
//	COVAULT_RATE_LIMIT_REQUESTS="120"
//	COVAULT_RATE_LIMIT_WINDOW="1m"
//
// Storage settings:
//
//	COVAULT_POSTGRES_URL="postgres://localhost/covault"
//	COVAULT_POSTGRES_MAX_CONNS="25"
//	COVAULT_REDIS_URL="redis://localhost:6379/0"
//	COVAULT_REDIS_POOL_SIZE="10"
//
// Auth settings:
//
//	COVAULT_SIGNING_KEY="..."         # required
//	COVAULT_INVITE_SIGNING_KEY="..."  # required
//	COVAULT_INVITE_LIFETIME="120h"
//	COVAULT_INVITE_CLEANUP_SCHEDULE="0 3 * * *"
//
// Mail settings:
//
//	COVAULT_SMTP_HOST="localhost"
//	COVAULT_SMTP_PORT="587"
//	COVAULT_MAIL_FROM="no-reply@covault.local"
//
// Observability settings:
//
//	COVAULT_LOG_LEVEL="info"  # debug, info, warn, error
//	COVAULT_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
