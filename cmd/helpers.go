package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/policyvoice/internal/config"
	"github.com/ziadkadry99/policyvoice/internal/db"
	"github.com/ziadkadry99/policyvoice/internal/knowledge"
	"github.com/ziadkadry99/policyvoice/internal/llm"
	"github.com/ziadkadry99/policyvoice/internal/logging"
	"github.com/ziadkadry99/policyvoice/internal/pipeline"
	"github.com/ziadkadry99/policyvoice/internal/session"
	"github.com/ziadkadry99/policyvoice/internal/turn"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `policyvoice init` to create a config file", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Everything logs to stderr so stdout
// stays free for chat output and the MCP protocol.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return logging.New(cfg.LogLevel, cfg.LogFormat, w)
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.LLMRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.LLMRPM)
	}
	return provider, nil
}

// openStore opens the configured session store. The returned close func
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreRedis:
		store, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis store: %w", err)
		}
		return store, store.Close, nil
	default:
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		return session.NewSQLiteStore(database), database.Close, nil
	}
}

// loadKnowledge reads the knowledge base. A missing or malformed file only
// logs a warning and yields an empty lookup.
func loadKnowledge(cfg *config.Config, logger zerolog.Logger) *knowledge.Lookup {
	base, err := knowledge.Load(cfg.KnowledgeBase)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.KnowledgeBase).Msg("knowledge base unavailable, answering without context")
	} else {
		logger.Info().Str("path", cfg.KnowledgeBase).Int("snippets", base.Len()).Msg("knowledge base loaded")
	}
	return knowledge.NewLookup(base)
}

// buildOrchestrator wires the two-stage pipeline over store.
func buildOrchestrator(cfg *config.Config, provider llm.Provider, store session.Store, lookup *knowledge.Lookup, logger zerolog.Logger) *turn.Orchestrator {
	p := pipeline.New(logger,
		pipeline.NewLookupStage(lookup),
		pipeline.NewAnswerStage(provider, pipeline.AnswerConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}),
	)
	return turn.NewOrchestrator(store, p,
		turn.WithTimeout(cfg.LLMTimeout),
		turn.WithLogger(logger),
	)
}

// app bundles what the conversational commands share.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	store        session.Store
	lookup       *knowledge.Lookup
	orchestrator *turn.Orchestrator
	closeStore   func() error
}

// newApp loads config and opens the store, knowledge base and LLM provider.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, nil)

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lookup := loadKnowledge(cfg, logger)
	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		lookup:       lookup,
		orchestrator: buildOrchestrator(cfg, provider, store, lookup, logger),
		closeStore:   closeStore,
	}, nil
}

func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn().Err(err).Msg("closing session store")
	}
}
