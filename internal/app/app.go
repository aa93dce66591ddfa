// Package app assembles the shared components from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/auth"
	"github.com/xaenox/unimind/internal/conversation"
	"github.com/xaenox/unimind/internal/responder"
	"github.com/xaenox/unimind/internal/storage"
	"github.com/xaenox/unimind/internal/tools"
	"github.com/xaenox/unimind/pkg/config"
)

type App struct {
	Store         storage.Storage
	Conversations *conversation.Manager
	Tools         *tools.Dispatcher
}

// New opens storage and wires the conversation manager and tool dispatcher.
// Callers own the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := storage.New(ctx, storageOptions(cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	r, err := responder.New(responderConfig(cfg), logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize responder: %w", err)
	}

	return &App{
		Store:         store,
		Conversations: conversation.NewManager(store, r, cfg.Conversation.HistoryWindow, logger),
		Tools: tools.NewDispatcher(store, tools.Limits{
			SearchScanCap: cfg.Tools.SearchScanCap,
			SearchDefault: cfg.Tools.SearchDefault,
			ListDefault:   cfg.Tools.ListDefault,
			MaxLimit:      cfg.Tools.MaxLimit,
		}, logger),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func storageOptions(db config.DatabaseConfig) storage.Options {
	return storage.Options{
		Driver: db.Driver,
		Postgres: storage.DatabaseConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			DBName:   db.DBName,
			SSLMode:  db.SSLMode,
		},
		SQLitePath: db.SQLitePath,
	}
}

func responderConfig(cfg *config.Config) responder.Config {
	return responder.Config{
		Provider:    cfg.Responder.Provider,
		UseFallback: cfg.Responder.Fallback,
		OpenAI: responder.OpenAIConfig{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.OpenAI.Model,
			MaxTokens:    cfg.OpenAI.MaxTokens,
			Temperature:  cfg.OpenAI.Temperature,
			SystemPrompt: cfg.OpenAI.SystemPrompt,
		},
		Breaker: responder.BreakerConfig{
			MaxFailures:         cfg.Breaker.MaxFailures,
			Timeout:             cfg.Breaker.Timeout,
			HalfOpenMaxRequests: cfg.Breaker.HalfOpenMaxRequests,
		},
	}
}

// NewVerifier combines the configured credential checks. JWT comes first;
// static tokens are meant for development.
func NewVerifier(cfg config.AuthConfig) (auth.Verifier, error) {
	var chain auth.ChainVerifier
	if cfg.JWTSecret != "" {
		chain = append(chain, auth.NewJWTVerifier(cfg.JWTSecret, cfg.Issuer, cfg.Audience))
	}
	if len(cfg.StaticTokens) > 0 {
		tokens, err := staticTokens(cfg.StaticTokens)
		if err != nil {
			return nil, err
		}
		chain = append(chain, auth.NewStaticVerifier(tokens))
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no credential verifier configured: set auth.jwt_secret or auth.static_tokens")
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

func staticTokens(entries []config.StaticToken) (map[string]string, error) {
	tokens := make(map[string]string, len(entries))
	for i, e := range entries {
		if e.Token == "" || e.Tenant == "" {
			return nil, fmt.Errorf("auth.static_tokens[%d]: token and tenant are required", i)
		}
		if _, dup := tokens[e.Token]; dup {
			return nil, fmt.Errorf("auth.static_tokens[%d]: duplicate token", i)
		}
		tokens[e.Token] = e.Tenant
	}
	return tokens, nil
}
