package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"citizenly/pkg/retry"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Identity IdentityConfig
	Token    TokenConfig

	// Visibility is the retry policy used while waiting for a created
	// identity to become visible on the profile store's read path.
	Visibility retry.Policy
}

type HTTPConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// AdminStatusTTL bounds staleness of the advisory jurisdiction
	// admin-status cache.
	AdminStatusTTL time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type IdentityConfig struct {
	// BaseURL of the auth service's admin API. Empty selects the in-memory
	// provider (dev and tests).
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

type TokenConfig struct {
	SigningKey string
	TTL        time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            envString("CITIZENLY_ADDR", ":8080"),
			RequestTimeout:  envDuration("CITIZENLY_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("CITIZENLY_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("CITIZENLY_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:            os.Getenv("CITIZENLY_REDIS_URL"),
			PoolSize:       envInt("CITIZENLY_REDIS_POOL_SIZE", 10),
			MinIdleConns:   envInt("CITIZENLY_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:    envDuration("CITIZENLY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:    envDuration("CITIZENLY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:   envDuration("CITIZENLY_REDIS_WRITE_TIMEOUT", 3*time.Second),
			AdminStatusTTL: envDuration("CITIZENLY_ADMIN_STATUS_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitNonEmpty(os.Getenv("CITIZENLY_KAFKA_BROKERS")),
			AuditTopic: envString("CITIZENLY_AUDIT_TOPIC", "citizenly.registration.audit"),
		},
		Identity: IdentityConfig{
			BaseURL:    os.Getenv("CITIZENLY_IDENTITY_URL"),
			ServiceKey: os.Getenv("CITIZENLY_IDENTITY_SERVICE_KEY"),
			Timeout:    envDuration("CITIZENLY_IDENTITY_TIMEOUT", 10*time.Second),
		},
		Token: TokenConfig{
			SigningKey: envString("CITIZENLY_TOKEN_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TTL:        envDuration("CITIZENLY_TOKEN_TTL", 15*time.Minute),
		},
		Visibility: retry.Policy{
			MaxAttempts:       envInt("REG_VISIBILITY_MAX_ATTEMPTS", retry.DefaultPolicy.MaxAttempts),
			InitialDelay:      envDuration("REG_VISIBILITY_INITIAL_DELAY", retry.DefaultPolicy.InitialDelay),
			BackoffMultiplier: envFloat("REG_VISIBILITY_BACKOFF_MULTIPLIER", retry.DefaultPolicy.BackoffMultiplier),
			MaxDelay:          envDuration("REG_VISIBILITY_MAX_DELAY", retry.DefaultPolicy.MaxDelay),
			Jitter:            envFloat("REG_VISIBILITY_JITTER", retry.DefaultPolicy.Jitter),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
