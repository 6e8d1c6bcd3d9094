// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored in development; real environments set
// variables directly.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	DevTenantHeader bool
}

// Database captures the optional Postgres backend. Empty URL means the
// in-memory store.
type Database struct {
	URL string
}

// Redis captures the optional read-through cache. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// Kafka captures the optional audit event sink. No brokers means the
// in-memory sink.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// RateLimit bounds per-tenant request rates.
type RateLimit struct {
	Disabled bool
	Requests int
	Window   time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Server      Server
	Database    Database
	Redis       Redis
	Kafka       Kafka
	RateLimit   RateLimit
	AuditBuffer int
}

// FromEnv builds a Config from environment variables, loading .env first when
// present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:            envOr("PLANLENS_ADDR", ":8080"),
			JWTSigningKey:   envOr("PLANLENS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:       envOr("PLANLENS_JWT_ISSUER", "planlens"),
			JWTAudience:     envOr("PLANLENS_JWT_AUDIENCE", "planlens-api"),
			DevTenantHeader: os.Getenv("PLANLENS_DEV_TENANT_HEADER") == "true",
		},
		Database: Database{
			URL: os.Getenv("PLANLENS_DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("PLANLENS_REDIS_URL"),
			PoolSize:     envIntOr("PLANLENS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("PLANLENS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("PLANLENS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("PLANLENS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("PLANLENS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDurationOr("PLANLENS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers:    envList("PLANLENS_KAFKA_BROKERS"),
			AuditTopic: envOr("PLANLENS_AUDIT_TOPIC", "planlens.audit"),
		},
		RateLimit: RateLimit{
			Disabled: os.Getenv("PLANLENS_RATE_LIMIT_DISABLED") == "true",
			Requests: envIntOr("PLANLENS_RATE_LIMIT_REQUESTS", 100),
			Window:   envDurationOr("PLANLENS_RATE_LIMIT_WINDOW", time.Minute),
		},
		AuditBuffer: envIntOr("PLANLENS_AUDIT_BUFFER", 256),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
