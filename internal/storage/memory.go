package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/xaenox/unimind/internal/models"
)

type MemoryStorage struct {
	mu      sync.RWMutex
	clock   clock
	threads map[string]map[string][]models.Turn
	notes   map[string][]models.Note
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		threads: make(map[string]map[string][]models.Turn),
		notes:   make(map[string][]models.Note),
	}
}

// Thread methods
func (s *MemoryStorage) AppendTurn(ctx context.Context, tenantID, threadID string, turn *models.Turn) error {
	if err := validateTurn(tenantID, threadID, turn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turn.ID = uuid.New().String()
	turn.Timestamp = s.clock.now()

	tenantThreads, exists := s.threads[tenantID]
	if !exists {
		tenantThreads = make(map[string][]models.Turn)
		s.threads[tenantID] = tenantThreads
	}

	tenantThreads[threadID] = append(tenantThreads[threadID], *turn)
	return nil
}

func (s *MemoryStorage) LatestTurns(ctx context.Context, tenantID, threadID string, limit int) ([]models.Turn, error) {
	if err := validateThread(tenantID, threadID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, exists := s.threads[tenantID][threadID]
	if !exists || limit <= 0 {
		return []models.Turn{}, nil
	}

	n := min(limit, len(turns))
	result := make([]models.Turn, 0, n)
	for i := len(turns) - 1; i >= len(turns)-n; i-- {
		result = append(result, turns[i])
	}
	return result, nil
}

// Note methods
func (s *MemoryStorage) CreateNote(ctx context.Context, tenantID string, note *models.Note) error {
	if err := validateNote(tenantID, note); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note.ID = uuid.New().String()
	note.CreatedAt = s.clock.now()
	if note.Tags == nil {
		note.Tags = []string{}
	}

	stored := *note
	stored.Tags = append([]string{}, note.Tags...)
	s.notes[tenantID] = append(s.notes[tenantID], stored)
	return nil
}

func (s *MemoryStorage) ListNotes(ctx context.Context, tenantID string, limit int) ([]models.Note, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.notes[tenantID]
	if limit <= 0 || len(notes) == 0 {
		return []models.Note{}, nil
	}

	n := min(limit, len(notes))
	result := make([]models.Note, n)
	for i := range n {
		result[i] = notes[i]
		result[i].Tags = append([]string{}, notes[i].Tags...)
	}
	return result, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
