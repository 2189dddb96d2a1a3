package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreDriver names which Store backend to construct.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
	StoreBolt     StoreDriver = "bolt"
)

// Config holds application configuration.
type Config struct {
	Addr        string
	LogLevel    string
	Env         string
	StoreDriver StoreDriver
	PostgresDSN string
	BoltPath    string

	AdminSecret string

	MaxConnection time.Duration
	FirstPoll     time.Duration
	FastPoll      time.Duration
	SlowPoll      time.Duration
	ConnectGrace  time.Duration
	LivenessGrace time.Duration
}

// Load parses and returns the application configuration.
// Priority: command-line flags > environment variables > .env file > defaults.
func Load() (*Config, error) {
	// godotenv.Load populates the process environment from .env; a
	// missing file is not an error, a malformed one is.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	addr := flag.String("addr", getEnv("SIGNAL_ADDR", ":8080"), "http service address")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	env := flag.String("env", getEnv("ENVIRONMENT", "development"), "environment (development, staging, production)")
	storeDriver := flag.String("store", getEnv("STORE_DRIVER", "memory"), "object store driver (memory, postgres, bolt)")
	postgresDSN := flag.String("postgres-dsn", getEnv("POSTGRES_DSN", ""), "postgres connection string, required for -store=postgres")
	boltPath := flag.String("bolt-path", getEnv("BOLT_PATH", "signal.db"), "bbolt database file path, used for -store=bolt")
	adminSecret := flag.String("admin-secret", getEnv("ADMIN_JWT_SECRET", ""), "HMAC secret for admin JWTs; admin routes are disabled if empty")

	maxConnection := flag.Duration("max-connection", getDuration("MAX_CONNECTION", 3600*time.Second), "session liveness ceiling from creation")
	firstPoll := flag.Duration("first-poll", getDuration("FIRST_POLL", time.Second), "next_poll offset on session creation")
	fastPoll := flag.Duration("fast-poll", getDuration("FAST_POLL", time.Second), "next_poll offset once paired")
	slowPoll := flag.Duration("slow-poll", getDuration("SLOW_POLL", 10*time.Second), "next_poll offset while unpaired")
	connectGrace := flag.Duration("connect-grace", getDuration("CONNECT_GRACE", 5*time.Second), "connect_at = peer.next_poll + this")
	livenessGrace := flag.Duration("liveness-grace", getDuration("LIVENESS_GRACE", 20*time.Second), "is_alive tolerance past next_poll")

	flag.Parse()

	driver := StoreDriver(strings.ToLower(*storeDriver))
	switch driver {
	case StoreMemory, StorePostgres, StoreBolt:
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", *storeDriver)
	}
	if driver == StorePostgres && *postgresDSN == "" {
		return nil, fmt.Errorf("config: -postgres-dsn is required for -store=postgres")
	}

	return &Config{
		Addr:        *addr,
		LogLevel:    strings.ToLower(*logLevel),
		Env:         strings.ToLower(*env),
		StoreDriver: driver,
		PostgresDSN: *postgresDSN,
		BoltPath:    *boltPath,
		AdminSecret: *adminSecret,

		MaxConnection: *maxConnection,
		FirstPoll:     *firstPoll,
		FastPoll:      *fastPoll,
		SlowPoll:      *slowPoll,
		ConnectGrace:  *connectGrace,
		LivenessGrace: *livenessGrace,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
