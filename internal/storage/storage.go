package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInput is returned when a call is missing its tenant or record fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps every failure reported by a backend.
	ErrStorage = errors.New("storage failure")
)

// Storage is the full persistence surface used by the gateway.
type Storage interface {
	Close() error

	ThreadStore
	NoteStore
}

// ThreadStore is a per-tenant append-only log of conversation turns.
type ThreadStore interface {
	// AppendTurn writes turn to the thread, creating the thread if needed.
	// The store assigns turn.ID and turn.Timestamp.
	AppendTurn(ctx context.Context, tenantID, threadID string, turn *models.Turn) error

	// LatestTurns returns up to limit turns of the thread, newest first.
	// An unknown thread yields an empty slice.
	LatestTurns(ctx context.Context, tenantID, threadID string, limit int) ([]models.Turn, error)
}

// NoteStore is a per-tenant unordered set of notes.
type NoteStore interface {
	// CreateNote stores note under the tenant and assigns note.ID and note.CreatedAt.
	CreateNote(ctx context.Context, tenantID string, note *models.Note) error

	// ListNotes returns up to limit notes of the tenant in store-defined order.
	ListNotes(ctx context.Context, tenantID string, limit int) ([]models.Note, error)
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func validateTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	return nil
}

func validateThread(tenantID, threadID string) error {
	if err := validateTenant(tenantID); err != nil {
		return err
	}
	if threadID == "" {
		return fmt.Errorf("%w: thread id is required", ErrInvalidInput)
	}
	return nil
}

func validateNote(tenantID string, note *models.Note) error {
	if err := validateTenant(tenantID); err != nil {
		return err
	}
	if note == nil {
		return fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	return nil
}

func validateTurn(tenantID, threadID string, turn *models.Turn) error {
	if err := validateThread(tenantID, threadID); err != nil {
		return err
	}
	if turn == nil {
		return fmt.Errorf("%w: turn is required", ErrInvalidInput)
	}
	if turn.Role != models.RoleUser && turn.Role != models.RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, turn.Role)
	}
	return nil
}

// Drivers accepted by New.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures a backend for New.
type Options struct {
	Driver     string
	Postgres   DatabaseConfig
	SQLitePath string
}

// New opens the backend named by opts.Driver.
func New(ctx context.Context, opts Options, logger *zap.Logger) (Storage, error) {
	switch opts.Driver {
	case DriverMemory, "":
		logger.Info("Using in-memory storage")
		return NewMemoryStorage(), nil
	case DriverPostgres:
		logger.Info("Using PostgreSQL storage")
		return NewPostgresStorage(ctx, opts.Postgres, logger)
	case DriverSQLite:
		logger.Info("Using SQLite storage")
		return NewSQLiteStorage(ctx, opts.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
