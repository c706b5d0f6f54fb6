package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"spendtalk-backend/internal/assistant"
	"spendtalk-backend/internal/backend"
	"spendtalk-backend/internal/config"
	"spendtalk-backend/internal/db"
	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/llm"
	"spendtalk-backend/internal/store"
)

type app struct {
	cfg         config.Config
	expenses    expense.Store
	sessions    *store.MemoryStore
	engine      *assistant.Engine
	transcriber llm.Transcriber
	closers     []func() error
}

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg}

	expenses, err := a.newExpenseStore()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wire expense store: %w", err)
	}
	a.expenses = expenses

	a.sessions = store.NewMemoryStore(cfg.HistoryLimit).WithPendingTTL(cfg.PendingTTL)
	if cfg.HistoryFile != "" {
		archive, err := store.OpenBoltArchive(cfg.HistoryFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("wire history archive: %w", err)
		}
		a.closers = append(a.closers, archive.Close)
		a.sessions.WithArchive(archive)
	}

	spec, err := llm.LoadPromptSpec(cfg.PromptFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load prompt: %w", err)
	}
	completer := a.newCompleter()
	a.engine = assistant.NewEngine(llm.NewClassifier(completer, spec), llm.NewResponder(completer, spec), expenses, a.sessions)
	return a, nil
}

func (a *app) newExpenseStore() (expense.Store, error) {
	cfg := a.cfg
	switch cfg.ExpenseDriver {
	case config.DriverFile:
		return store.NewFileExpenseStore(cfg.ExpenseFile), nil
	case config.DriverSQLite, config.DriverPostgres:
		dialect, dsn := db.SQLite, cfg.SQLitePath
		if cfg.ExpenseDriver == config.DriverPostgres {
			dialect, dsn = db.Postgres, cfg.DatabaseURL
		}
		database, err := db.Open(dialect, dsn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := database.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Printf("[db] %s ready", dialect)
		return store.NewDatabaseStore(database), nil
	case config.DriverHTTP:
		var opts []backend.Option
		if cfg.BackendClientID != "" {
			opts = append(opts, backend.WithClientCredentials(cfg.BackendClientID, cfg.BackendClientSecret, cfg.BackendTokenURL, cfg.BackendScopes))
		}
		return backend.NewClient(cfg.BackendURL, opts...), nil
	default:
		return store.NewMemoryExpenseStore(), nil
	}
}

func (a *app) newCompleter() llm.Completer {
	cfg := a.cfg
	httpClient := &http.Client{Timeout: cfg.TurnTimeout + 10*time.Second}
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicCompleter(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, httpClient)
	case config.ProviderGroq:
		baseURL := cfg.LLMBaseURL
		if baseURL == "" {
			baseURL = llm.GroqBaseURL
		}
		c := llm.NewOpenAICompleter(cfg.LLMAPIKey, baseURL, cfg.LLMModel, cfg.STTModel, httpClient)
		a.transcriber = c
		return c
	default:
		c := llm.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.STTModel, httpClient)
		a.transcriber = c
		return c
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
	a.closers = nil
}
