// Package conversation appends user turns to tenant threads and answers them
// with a Responder.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/models"
	"github.com/xaenox/unimind/internal/responder"
	"github.com/xaenox/unimind/internal/storage"
)

// DefaultHistoryWindow is the number of turns handed to the responder.
const DefaultHistoryWindow = 10

// ErrInvalidInput is returned before any storage access for an unusable request.
var ErrInvalidInput = errors.New("invalid input")

// Reply is the outcome of one SendMessage call.
type Reply struct {
	Text     string
	ThreadID string
	Model    string
	// Persisted is false when the assistant turn could not be written.
	// Text is still the generated reply in that case.
	Persisted bool
}

type Manager struct {
	threads       storage.ThreadStore
	responder     responder.Responder
	historyWindow int
	logger        *zap.Logger
}

func NewManager(threads storage.ThreadStore, r responder.Responder, historyWindow int, logger *zap.Logger) *Manager {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Manager{
		threads:       threads,
		responder:     r,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// SendMessage appends message to the thread, asks the responder for a reply
// over the latest turns and appends that reply. An empty threadID starts a
// new thread; an unknown one is created on first write.
func (m *Manager) SendMessage(ctx context.Context, tenantID, message, threadID string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	if threadID == "" {
		threadID = uuid.New().String()
	}

	logger := m.logger.With(zap.String("tenant_id", tenantID), zap.String("thread_id", threadID))

	userTurn := &models.Turn{Role: models.RoleUser, Content: message}
	if err := m.threads.AppendTurn(ctx, tenantID, threadID, userTurn); err != nil {
		logger.Error("Failed to append user turn", zap.Error(err))
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	history, err := m.window(ctx, tenantID, threadID)
	if err != nil {
		logger.Error("Failed to load history", zap.Error(err))
		return nil, fmt.Errorf("load history: %w", err)
	}

	answer, err := m.responder.Respond(ctx, history)
	if err != nil {
		logger.Error("Responder failed", zap.Error(err))
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	reply := &Reply{
		Text:      answer.Text,
		ThreadID:  threadID,
		Model:     answer.Model,
		Persisted: true,
	}

	assistantTurn := &models.Turn{
		Role:      models.RoleAssistant,
		Content:   answer.Text,
		ModelUsed: answer.Model,
	}
	if err := m.threads.AppendTurn(ctx, tenantID, threadID, assistantTurn); err != nil {
		// The reply is still returned; the thread now ends on the user turn.
		logger.Warn("Failed to append assistant turn", zap.Error(err))
		reply.Persisted = false
	}

	return reply, nil
}

// window returns the latest turns of the thread in chronological order.
func (m *Manager) window(ctx context.Context, tenantID, threadID string) ([]models.Turn, error) {
	turns, err := m.threads.LatestTurns(ctx, tenantID, threadID, m.historyWindow)
	if err != nil {
		return nil, err
	}
	slices.Reverse(turns)
	return turns, nil
}
