package app

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/pkg/config"
)

// Bootstrap loads .env, then the config at path (empty means defaults and
// environment only), then builds the logger the config asks for.
func Bootstrap(path string) (*config.Config, *zap.Logger, error) {
	dotenvErr := godotenv.Load()

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	var logger *zap.Logger
	if cfg.Log.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if dotenvErr != nil {
		logger.Debug(".env file not loaded", zap.Error(dotenvErr))
	}
	return cfg, logger, nil
}
