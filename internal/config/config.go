package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"collectsync-service/internal/presence"
	"collectsync-service/internal/session"
)

type AppConfig struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Remote synchronized store: "firestore" or "postgres"
	RemoteBackend      string
	FirestoreProjectID string
	PostgresDSN        string

	// Local cache
	CachePath string

	// Redis (OTP + PIN rate limiting); empty disables redis and falls back
	// to the in-memory stores.
	RedisAddr string
	RedisPass string

	// Auth
	JWTSecret   string
	JWTTTL      time.Duration
	OTPRequired bool

	// Sync layer tuning
	HeartbeatInterval time.Duration
	IdleLogout        bool
	IdleTimeout       time.Duration
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RemoteBackend:      getEnv("REMOTE_BACKEND", "postgres"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		PostgresDSN:        getEnv("POSTGRES_DSN", "postgres://localhost:5432/collectsync"),

		CachePath: getEnv("CACHE_PATH", "collectsync.db"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		RedisPass: getEnv("REDIS_PASS", ""),

		JWTSecret:   getEnv("JWT_SECRET", "dev-only-secret"),
		JWTTTL:      getEnvDuration("JWT_TTL", 12*time.Hour),
		OTPRequired: getEnvBool("OTP_REQUIRED", false),

		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", presence.DefaultInterval),
		IdleLogout:        getEnvBool("IDLE_LOGOUT", false),
		IdleTimeout:       getEnvDuration("IDLE_TIMEOUT", session.DefaultIdleTimeout),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.ToLower(v) == "true" || v == "1"
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
