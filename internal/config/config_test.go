package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "LLM_PROVIDER", "LLM_API_KEY", "LLM_MODEL", "STT_MODEL", "GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "EXPENSE_DRIVER", "DB_URL", "HISTORY_LIMIT", "PENDING_TTL", "BACKEND_SCOPES", "BACKEND_CLIENT_ID", "BACKEND_TOKEN_URL"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := LoadFrom(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderGroq, cfg.LLMProvider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLMModel)
	assert.Equal(t, "gsk-test", cfg.LLMAPIKey)
	assert.Equal(t, "whisper-large-v3", cfg.STTModel)
	assert.Equal(t, DriverMemory, cfg.ExpenseDriver)
	assert.Equal(t, "http://localhost:3030", cfg.BackendURL)
	assert.Equal(t, 0, cfg.HistoryLimit)
	assert.Equal(t, 7*time.Minute, cfg.PendingTTL)
	assert.Equal(t, 20*time.Second, cfg.TurnTimeout)
	assert.Empty(t, cfg.BackendScopes)
}

func TestFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spendtalk.toml"), []byte(`
port = "9090"
llm_provider = "anthropic"
expense_driver = "sqlite"
history_limit = 40
backend_scopes = "expenses.read, expenses.write"
`), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := LoadFrom(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, "claude-3-7-sonnet-latest", cfg.LLMModel)
	assert.Equal(t, "sk-ant", cfg.LLMAPIKey)
	assert.Equal(t, DriverSQLite, cfg.ExpenseDriver)
	assert.Equal(t, 40, cfg.HistoryLimit)
	assert.Equal(t, []string{"expenses.read", "expenses.write"}, cfg.BackendScopes)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPENSE_DRIVER", "postgres")
	_, err := LoadFrom(viper.New(), t.TempDir())
	require.ErrorContains(t, err, "DB_URL")

	t.Setenv("EXPENSE_DRIVER", "mongo")
	_, err = LoadFrom(viper.New(), t.TempDir())
	require.ErrorContains(t, err, "EXPENSE_DRIVER")

	t.Setenv("EXPENSE_DRIVER", "")
	t.Setenv("LLM_PROVIDER", "cohere")
	_, err = LoadFrom(viper.New(), t.TempDir())
	require.ErrorContains(t, err, "LLM_PROVIDER")
}
