package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) connString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.connString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("PostgreSQL storage ready",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) AppendTurn(ctx context.Context, tenantID, threadID string, turn *models.Turn) error {
	if err := validateTurn(tenantID, threadID, turn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: error starting transaction: %w", ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (tenant_id, id)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, id) DO UPDATE SET last_used_at = clock_timestamp()`,
		tenantID, threadID)
	if err != nil {
		return fmt.Errorf("%w: error upserting thread: %w", ErrStorage, err)
	}

	id := uuid.New().String()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO turns (id, tenant_id, thread_id, role, content, model_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		id, tenantID, threadID, string(turn.Role), turn.Content, turn.ModelUsed,
	).Scan(&turn.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: error appending turn: %w", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: error committing turn: %w", ErrStorage, err)
	}

	turn.ID = id
	return nil
}

func (s *PostgresStorage) LatestTurns(ctx context.Context, tenantID, threadID string, limit int) ([]models.Turn, error) {
	if err := validateThread(tenantID, threadID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, model_used, created_at
		FROM turns
		WHERE tenant_id = $1 AND thread_id = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT $3`,
		tenantID, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: error querying turns: %w", ErrStorage, err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		var turn models.Turn
		var role string
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &turn.ModelUsed, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: error scanning turn: %w", ErrStorage, err)
		}
		turn.Role = models.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating turns: %w", ErrStorage, err)
	}

	return turns, nil
}

func (s *PostgresStorage) CreateNote(ctx context.Context, tenantID string, note *models.Note) error {
	if err := validateNote(tenantID, note); err != nil {
		return err
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}

	id := uuid.New().String()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (id, tenant_id, title, content, tags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		id, tenantID, note.Title, note.Content, pq.Array(note.Tags),
	).Scan(&note.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: error creating note: %w", ErrStorage, err)
	}

	note.ID = id
	return nil
}

func (s *PostgresStorage) ListNotes(ctx context.Context, tenantID string, limit int) ([]models.Note, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Note{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, tags, created_at
		FROM notes
		WHERE tenant_id = $1
		ORDER BY seq
		LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: error querying notes: %w", ErrStorage, err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var note models.Note
		var tags pq.StringArray
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &tags, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: error scanning note: %w", ErrStorage, err)
		}
		note.Tags = []string(tags)
		if note.Tags == nil {
			note.Tags = []string{}
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating notes: %w", ErrStorage, err)
	}

	return notes, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
