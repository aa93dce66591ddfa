package responder

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	ProviderStub   = "stub"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider string
	// UseFallback answers with the stub when the provider fails.
	UseFallback bool
	OpenAI      OpenAIConfig
	Breaker     BreakerConfig
}

// New builds the responder chain named by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Responder, error) {
	switch cfg.Provider {
	case ProviderStub, "":
		logger.Info("Using stub responder")
		return Stub{}, nil
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai responder requires an api key")
		}
		logger.Info("Using OpenAI responder", zap.String("model", cfg.OpenAI.Model))

		var r Responder = NewBreaker(NewOpenAI(cfg.OpenAI, logger), cfg.Breaker, logger)
		if cfg.UseFallback {
			r = NewFallback(r, Stub{}, logger)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}
