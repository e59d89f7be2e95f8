package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer   string   // Issuer claim for tokens (default: launcherd)
	Audience []string // Audience claim for tokens (default: launcherd-clients)

	JWTSecret string // Required: HS256 signing secret, at least 32 bytes

	DatabaseFile string // Path to the SQLite database file (default: ./launcher.db)
	RedisURL     string // Optional: redis:// URL; empty falls back to in-memory KV

	LaunchCodeTTL     time.Duration // Launch code lifetime, 1s..300s (default: 60s)
	LaunchCodeBytes   int           // Launch code entropy in bytes, 16..64 (default: 32)
	LauncherURIScheme string        // Scheme used in launch URIs (default: svlauncher)
	ExchangeCredTTL   time.Duration // Websocket exchange credential lifetime (default: 60s)
	HeartbeatInterval time.Duration // Gateway liveness check period (default: 15s)

	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTTL time.Duration // Refresh session lifetime (default: 30 days)

	SeedDefaults bool // Seed default users and game when the DB is empty (default: false)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	return Config{
		Issuer:    getEnvOrDefault("LAUNCHER_ISSUER", "launcherd"),
		Audience:  []string{getEnvOrDefault("LAUNCHER_AUDIENCE", "launcherd-clients")},
		JWTSecret: os.Getenv("LAUNCHER_JWT_SECRET"),

		DatabaseFile: getEnvOrDefault("LAUNCHER_DATABASE_FILE", "launcher.db"),
		RedisURL:     os.Getenv("LAUNCHER_REDIS_URL"),

		LaunchCodeTTL:     getEnvDurationOrDefault("LAUNCHER_CODE_TTL", 60*time.Second),
		LaunchCodeBytes:   getEnvIntOrDefault("LAUNCHER_CODE_BYTES", 32),
		LauncherURIScheme: getEnvOrDefault("LAUNCHER_URI_SCHEME", "svlauncher"),
		ExchangeCredTTL:   getEnvDurationOrDefault("LAUNCHER_EXCHANGE_CRED_TTL", 60*time.Second),
		HeartbeatInterval: getEnvDurationOrDefault("LAUNCHER_HEARTBEAT_INTERVAL", 15*time.Second),

		AccessTTL:  getEnvDurationOrDefault("LAUNCHER_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("LAUNCHER_REFRESH_TTL", 30*24*time.Hour),

		SeedDefaults: getEnvBoolOrDefault("LAUNCHER_SEED_DEFAULTS", false),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return defaultValue
}
