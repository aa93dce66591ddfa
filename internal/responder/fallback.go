package responder

import (
	"context"

	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
)

// Fallback answers with secondary whenever primary fails.
type Fallback struct {
	primary   Responder
	secondary Responder
	logger    *zap.Logger
}

func NewFallback(primary, secondary Responder, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Respond(ctx context.Context, history []models.Turn) (Reply, error) {
	reply, err := f.primary.Respond(ctx, history)
	if err == nil {
		return reply, nil
	}

	f.logger.Warn("Primary responder failed, using fallback",
		zap.Error(err),
		zap.Int("history_len", len(history)))
	return f.secondary.Respond(ctx, history)
}
