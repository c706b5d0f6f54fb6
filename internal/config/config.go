package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverHTTP     = "http"
)

var defaultModels = map[string]string{
	ProviderGroq:      "llama-3.3-70b-versatile",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-7-sonnet-latest",
}

var defaultSTTModels = map[string]string{
	ProviderGroq:   "whisper-large-v3",
	ProviderOpenAI: "whisper-1",
}

var providerKeyEnv = map[string]string{
	ProviderGroq:      "GROQ_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

type Config struct {
	Port          string
	AllowedOrigin string
	// Model
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	STTModel    string
	PromptFile  string
	// Expense storage
	ExpenseDriver string
	ExpenseFile   string
	DatabaseURL   string
	SQLitePath    string
	// Remote expense backend
	BackendURL          string
	BackendClientID     string
	BackendClientSecret string
	BackendTokenURL     string
	BackendScopes       []string
	// Conversation
	HistoryFile  string
	HistoryLimit int
	PendingTTL   time.Duration
	TurnTimeout  time.Duration
}

// Load reads .env, then an optional spendtalk.toml in the working directory.
// Environment variables win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(viper.New(), ".")
}

// LoadFrom reads spendtalk.toml from the first of dirs that has one.
func LoadFrom(v *viper.Viper, dirs ...string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigName("spendtalk")
	v.SetConfigType("toml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Port:                v.GetString("port"),
		AllowedOrigin:       v.GetString("allowed_origin"),
		LLMProvider:         strings.ToLower(strings.TrimSpace(v.GetString("llm_provider"))),
		LLMAPIKey:           v.GetString("llm_api_key"),
		LLMBaseURL:          v.GetString("llm_base_url"),
		LLMModel:            v.GetString("llm_model"),
		STTModel:            v.GetString("stt_model"),
		PromptFile:          v.GetString("prompt_file"),
		ExpenseDriver:       strings.ToLower(strings.TrimSpace(v.GetString("expense_driver"))),
		ExpenseFile:         v.GetString("expense_file"),
		DatabaseURL:         v.GetString("db_url"),
		SQLitePath:          v.GetString("sqlite_path"),
		BackendURL:          v.GetString("backend_url"),
		BackendClientID:     v.GetString("backend_client_id"),
		BackendClientSecret: v.GetString("backend_client_secret"),
		BackendTokenURL:     v.GetString("backend_token_url"),
		BackendScopes:       splitList(v.GetString("backend_scopes")),
		HistoryFile:         v.GetString("history_file"),
		HistoryLimit:        v.GetInt("history_limit"),
		PendingTTL:          v.GetDuration("pending_ttl"),
		TurnTimeout:         v.GetDuration("turn_timeout"),
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv(providerKeyEnv[cfg.LLMProvider])
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultModels[cfg.LLMProvider]
	}
	if cfg.STTModel == "" {
		cfg.STTModel = defaultSTTModels[cfg.LLMProvider]
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.LLMAPIKey == "" {
		log.Printf("warning: no API key for %s; set LLM_API_KEY or %s before chatting", cfg.LLMProvider, providerKeyEnv[cfg.LLMProvider])
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "*")
	v.SetDefault("llm_provider", ProviderGroq)
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_model", "")
	v.SetDefault("stt_model", "")
	v.SetDefault("prompt_file", "")
	v.SetDefault("expense_driver", DriverMemory)
	v.SetDefault("expense_file", "data/expenses.toml")
	v.SetDefault("db_url", "")
	v.SetDefault("sqlite_path", "data/spendtalk.db")
	v.SetDefault("backend_url", "http://localhost:3030")
	v.SetDefault("backend_client_id", "")
	v.SetDefault("backend_client_secret", "")
	v.SetDefault("backend_token_url", "")
	v.SetDefault("backend_scopes", "")
	v.SetDefault("history_file", "")
	v.SetDefault("history_limit", 0)
	v.SetDefault("pending_ttl", "7m")
	v.SetDefault("turn_timeout", "20s")
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	if _, ok := defaultModels[c.LLMProvider]; !ok {
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.ExpenseDriver {
	case DriverMemory, DriverSQLite, DriverHTTP:
	case DriverFile:
		if c.ExpenseFile == "" {
			return errors.New("EXPENSE_FILE is required for the file driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DB_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown EXPENSE_DRIVER %q", c.ExpenseDriver)
	}
	if c.BackendClientID != "" && c.BackendTokenURL == "" {
		return errors.New("BACKEND_TOKEN_URL is required with BACKEND_CLIENT_ID")
	}
	if c.HistoryLimit < 0 {
		return errors.New("HISTORY_LIMIT must not be negative")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
