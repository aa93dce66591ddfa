// Package httpapi exposes the conversation and tool endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/auth"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit is requests per second per tenant; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRouter mounts every route. /health is public; /api requires a tenant.
func NewRouter(h *Handlers, resolver *auth.Resolver, cfg Config, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger))

	r.GET("/health", h.Health)

	api := r.Group("/api", RequireTenant(resolver), RateLimit(cfg.RateLimit, cfg.RateBurst))
	api.POST("/chat/send-message", h.SendMessage)

	mcp := api.Group("/mcp/tools")
	mcp.POST("/list", h.ListTools)
	mcp.POST("/call", h.CallTool)

	return r
}

// Serve runs handler on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, handler http.Handler, cfg Config, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
