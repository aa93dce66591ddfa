package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/app"
	"github.com/xaenox/unimind/internal/auth"
	"github.com/xaenox/unimind/internal/httpapi"
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

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	verifier, err := app.NewVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to configure auth", zap.Error(err))
	}

	serverCfg := httpapi.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	}
	handlers := httpapi.NewHandlers(a.Conversations, a.Tools, cfg.Server.Version, logger)
	router := httpapi.NewRouter(handlers, auth.NewResolver(verifier, logger), serverCfg, logger)

	if err := httpapi.Serve(ctx, router, serverCfg, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
