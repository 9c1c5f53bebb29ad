package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config centralizes runtime settings for the API and workers.
type Config struct {
	AppEnv string
	Port   string

	SessionTokens []string

	DatabaseURL string
	StoragePath string

	BackendAPIKey    string
	BackendBaseURL   string
	BackendTimeoutMS int

	PollIntervalSeconds int
	JobTimeoutSeconds   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	QueueBuffer      int
	QueueMaxAttempts int

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	WorkerEnabled     bool
	WorkerConcurrency int
}

// LoadDotEnv loads .env-like files; existing process environment variables
// keep precedence. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, err := os.Stat(trimmed); err != nil {
			continue
		}
		if err := godotenv.Load(trimmed); err != nil {
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		SessionTokens: splitList(getEnv("SESSION_TOKENS", "")),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		BackendAPIKey:    getEnv("GEN_BACKEND_API_KEY", ""),
		BackendBaseURL:   getEnv("GEN_BACKEND_BASE_URL", ""),
		BackendTimeoutMS: getEnvInt("GEN_BACKEND_TIMEOUT_MS", 30000),

		PollIntervalSeconds: getEnvInt("POLL_INTERVAL_SECONDS", 3),
		JobTimeoutSeconds:   getEnvInt("JOB_TIMEOUT_SECONDS", 600),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "mediagen_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "mediagen_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "mediagen_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		QueueBuffer:      getEnvInt("QUEUE_BUFFER", 256),
		QueueMaxAttempts: getEnvInt("QUEUE_MAX_ATTEMPTS", 3),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		WorkerEnabled:     getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
	}
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
