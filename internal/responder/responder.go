// Package responder generates assistant replies from a conversation window.
package responder

import (
	"context"

	"github.com/xaenox/unimind/internal/models"
)

// Reply is a generated answer and the model that produced it.
type Reply struct {
	Text  string
	Model string
}

// Responder turns a chronological window of turns into a reply.
type Responder interface {
	Respond(ctx context.Context, history []models.Turn) (Reply, error)
}

const (
	StubText  = "Bonjour! Je suis UnimindAI. Comment puis-je vous aider?"
	StubModel = "demo"
)

// Stub answers every window with the same greeting.
type Stub struct{}

func (Stub) Respond(ctx context.Context, history []models.Turn) (Reply, error) {
	return Reply{Text: StubText, Model: StubModel}, nil
}

// Func adapts an ordinary function to Responder.
type Func func(ctx context.Context, history []models.Turn) (Reply, error)

func (f Func) Respond(ctx context.Context, history []models.Turn) (Reply, error) {
	return f(ctx, history)
}
