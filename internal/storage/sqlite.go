package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
    tenant_id    TEXT    NOT NULL,
    id           TEXT    NOT NULL,
    created_at   INTEGER NOT NULL,
    last_used_at INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS turns (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    tenant_id  TEXT    NOT NULL,
    thread_id  TEXT    NOT NULL,
    role       TEXT    NOT NULL CHECK (role IN ('user', 'assistant')),
    content    TEXT    NOT NULL,
    model_used TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (tenant_id, thread_id) REFERENCES threads (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_turns_thread ON turns (tenant_id, thread_id, seq DESC);

CREATE TABLE IF NOT EXISTS notes (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    tenant_id  TEXT    NOT NULL,
    title      TEXT    NOT NULL,
    content    TEXT    NOT NULL,
    tags       TEXT    NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_tenant ON notes (tenant_id, seq);
`

// SQLiteStorage keeps threads and notes in a single SQLite file.
// Timestamps are stored as unix nanoseconds.
type SQLiteStorage struct {
	db     *sql.DB
	clock  clock
	logger *zap.Logger
}

func NewSQLiteStorage(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("error applying %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	logger.Info("SQLite storage ready", zap.String("path", path))
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) AppendTurn(ctx context.Context, tenantID, threadID string, turn *models.Turn) error {
	if err := validateTurn(tenantID, threadID, turn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: error starting transaction: %w", ErrStorage, err)
	}
	defer tx.Rollback()

	ts := s.clock.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (tenant_id, id, created_at, last_used_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET last_used_at = excluded.last_used_at`,
		tenantID, threadID, ts.UnixNano(), ts.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: error upserting thread: %w", ErrStorage, err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (id, tenant_id, thread_id, role, content, model_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, threadID, string(turn.Role), turn.Content, turn.ModelUsed, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: error appending turn: %w", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: error committing turn: %w", ErrStorage, err)
	}

	turn.ID = id
	turn.Timestamp = ts
	return nil
}

func (s *SQLiteStorage) LatestTurns(ctx context.Context, tenantID, threadID string, limit int) ([]models.Turn, error) {
	if err := validateThread(tenantID, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, model_used, created_at
		FROM turns
		WHERE tenant_id = ? AND thread_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		tenantID, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: error querying turns: %w", ErrStorage, err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		var turn models.Turn
		var role string
		var createdAt int64
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &turn.ModelUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: error scanning turn: %w", ErrStorage, err)
		}
		turn.Role = models.Role(role)
		turn.Timestamp = time.Unix(0, createdAt).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating turns: %w", ErrStorage, err)
	}

	return turns, nil
}

func (s *SQLiteStorage) CreateNote(ctx context.Context, tenantID string, note *models.Note) error {
	if err := validateNote(tenantID, note); err != nil {
		return err
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}

	tags, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("%w: error encoding tags: %w", ErrInvalidInput, err)
	}

	id := uuid.New().String()
	ts := s.clock.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, tenant_id, title, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, tenantID, note.Title, note.Content, string(tags), ts.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: error creating note: %w", ErrStorage, err)
	}

	note.ID = id
	note.CreatedAt = ts
	return nil
}

func (s *SQLiteStorage) ListNotes(ctx context.Context, tenantID string, limit int) ([]models.Note, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Note{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, tags, created_at
		FROM notes
		WHERE tenant_id = ?
		ORDER BY seq
		LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: error querying notes: %w", ErrStorage, err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var note models.Note
		var tags string
		var createdAt int64
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: error scanning note: %w", ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(tags), &note.Tags); err != nil {
			s.logger.Warn("Failed to decode note tags",
				zap.Error(err),
				zap.String("note_id", note.ID))
		}
		if note.Tags == nil {
			note.Tags = []string{}
		}
		note.CreatedAt = time.Unix(0, createdAt).UTC()
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating notes: %w", ErrStorage, err)
	}

	return notes, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
