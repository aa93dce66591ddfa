package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/app"
	"github.com/xaenox/unimind/internal/bot"
	"github.com/xaenox/unimind/internal/classifier"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load configuration and logger
	cfg, logger, err := app.Bootstrap(*configPath)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Telegram.Token == "" {
		logger.Fatal("Telegram token is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, a.Conversations, a.Tools,
		classifier.NewSimpleClassifier(cfg.Classifier.MaxTags), logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
