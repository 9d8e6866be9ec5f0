package storage

import (
	"fmt"
	"time"
)

// Config holds connection settings for the backing stores
type Config struct {
	// PostgreSQL
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration

	// Redis
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns a config with sensible development defaults
func DefaultConfig() Config {
	return Config{
		PostgresURL:      "postgres://localhost:5432/covault?sslmode=disable",
		PostgresMaxConns: 25,
		PostgresMinConns: 5,
		PostgresTimeout:  10 * time.Second,
		ConnMaxLifetime:  time.Hour,
		ConnMaxIdleTime:  10 * time.Minute,

		RedisURL: "redis://localhost:6379/0",
		RedisDB:  -1,
	}
}

// Validate checks that the config can produce working connections
func (c Config) Validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.PostgresMaxConns > 0 && c.PostgresMinConns > c.PostgresMaxConns {
		return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)", c.PostgresMinConns, c.PostgresMaxConns)
	}
	return nil
}
