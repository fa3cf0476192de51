package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("QUOTA_BACKEND", "memory")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("COMPLETION_PROVIDER", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("MAX_FREE_COUNTS", "")

	cfg := Load()

	assert.Equal(t, ProviderOpenAI, cfg.CompletionProvider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.CompletionModel())
	assert.Equal(t, 5, cfg.MaxFreeCounts)
	assert.Empty(t, cfg.CompletionAPIKey())
}

func TestLoad_GeminiSelectsGeminiKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("QUOTA_BACKEND", "memory")
	t.Setenv("COMPLETION_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("GEMINI_MODEL", "gemini-test")

	cfg := Load()

	assert.Equal(t, "g-key", cfg.CompletionAPIKey())
	assert.Equal(t, "gemini-test", cfg.CompletionModel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory backend", Config{CompletionProvider: ProviderOpenAI, QuotaBackend: QuotaBackendMemory}, false},
		{"postgres without url", Config{CompletionProvider: ProviderOpenAI, QuotaBackend: QuotaBackendPostgres}, true},
		{"postgres with url", Config{CompletionProvider: ProviderOpenAI, QuotaBackend: QuotaBackendPostgres, DatabaseURL: "postgres://x"}, false},
		{"redis without url", Config{CompletionProvider: ProviderOpenAI, QuotaBackend: QuotaBackendRedis}, true},
		{"unknown provider", Config{CompletionProvider: "llama", QuotaBackend: QuotaBackendMemory}, true},
		{"unknown backend", Config{CompletionProvider: ProviderGemini, QuotaBackend: "sqlite"}, true},
		{"negative limit", Config{CompletionProvider: ProviderOpenAI, QuotaBackend: QuotaBackendMemory, MaxFreeCounts: -1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
