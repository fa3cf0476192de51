package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	QuotaBackendPostgres = "postgres"
	QuotaBackendRedis    = "redis"
	QuotaBackendMemory   = "memory"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Completion provider
	CompletionProvider       string
	OpenAIAPIKey             string
	OpenAIBaseURL            string
	OpenAIModel              string
	GeminiAPIKey             string
	GeminiModel              string
	CompletionTimeoutSeconds int

	// Usage quota
	QuotaBackend       string
	MaxFreeCounts      int
	RateLimitPerMinute int

	// Logging
	LogLevel string
	LogFile  string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      getEnvOrDefault("ENV", "development"),
		DatabaseURL:              getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:                 getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		CompletionProvider:       strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:             getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:            getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:              getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		GeminiAPIKey:             getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:              getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		CompletionTimeoutSeconds: getEnvAsIntOrDefault("COMPLETION_TIMEOUT_SECONDS", 120),
		QuotaBackend:             strings.ToLower(getEnvOrDefault("QUOTA_BACKEND", QuotaBackendPostgres)),
		MaxFreeCounts:            getEnvAsIntOrDefault("MAX_FREE_COUNTS", 5),
		RateLimitPerMinute:       getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 20),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:                  getEnvOrDefault("LOG_FILE", ""),
		FrontendURL:              getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}

	return cfg
}

// Validate reports settings that cannot work together. A missing completion
// API key is not an error here: the conversation endpoint answers 500 for it.
func (c *Config) Validate() error {
	switch c.CompletionProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported COMPLETION_PROVIDER %q", c.CompletionProvider)
	}

	switch c.QuotaBackend {
	case QuotaBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s quota backend", c.QuotaBackend)
		}
	case QuotaBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s quota backend", c.QuotaBackend)
		}
	case QuotaBackendMemory:
	default:
		return fmt.Errorf("unsupported QUOTA_BACKEND %q", c.QuotaBackend)
	}

	if c.MaxFreeCounts < 0 {
		return fmt.Errorf("MAX_FREE_COUNTS must not be negative")
	}
	return nil
}

// CompletionAPIKey returns the key of the selected provider.
func (c *Config) CompletionAPIKey() string {
	if c.CompletionProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// CompletionModel returns the fixed model identifier sent with every request.
func (c *Config) CompletionModel() string {
	if c.CompletionProvider == ProviderGemini {
		return c.GeminiModel
	}
	return c.OpenAIModel
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
