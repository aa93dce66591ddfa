package storage_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/models"
	"github.com/xaenox/unimind/internal/storage"
)

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("LatestTurnsNewestFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := range 5 {
			turn := &models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)}
			require.NoError(t, store.AppendTurn(ctx, "tenant-a", "thread-1", turn))
			assert.NotEmpty(t, turn.ID)
			assert.False(t, turn.Timestamp.IsZero())
		}

		turns, err := store.LatestTurns(ctx, "tenant-a", "thread-1", 3)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, "m4", turns[0].Content)
		assert.Equal(t, "m3", turns[1].Content)
		assert.Equal(t, "m2", turns[2].Content)
		assert.True(t, turns[0].Timestamp.After(turns[1].Timestamp))
	})

	t.Run("TimestampsStrictlyIncrease", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := &models.Turn{Role: models.RoleUser, Content: "hi"}
		assistant := &models.Turn{Role: models.RoleAssistant, Content: "hello", ModelUsed: "demo"}
		require.NoError(t, store.AppendTurn(ctx, "tenant-a", "thread-1", user))
		require.NoError(t, store.AppendTurn(ctx, "tenant-a", "thread-1", assistant))
		assert.True(t, assistant.Timestamp.After(user.Timestamp))

		turns, err := store.LatestTurns(ctx, "tenant-a", "thread-1", 10)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, models.RoleAssistant, turns[0].Role)
		assert.Equal(t, "demo", turns[0].ModelUsed)
		assert.Empty(t, turns[1].ModelUsed)
	})

	t.Run("UnknownThreadIsEmpty", func(t *testing.T) {
		store := newStore(t)
		turns, err := store.LatestTurns(context.Background(), "tenant-a", "missing", 10)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("ThreadsAreTenantScoped", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.AppendTurn(ctx, "tenant-a", "shared-id", &models.Turn{Role: models.RoleUser, Content: "secret"}))

		turns, err := store.LatestTurns(ctx, "tenant-b", "shared-id", 10)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("RejectsMissingScope", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		err := store.AppendTurn(ctx, "", "thread", &models.Turn{Role: models.RoleUser, Content: "x"})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)

		err = store.AppendTurn(ctx, "tenant", "", &models.Turn{Role: models.RoleUser, Content: "x"})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)

		err = store.AppendTurn(ctx, "tenant", "thread", &models.Turn{Role: "system", Content: "x"})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)

		_, err = store.ListNotes(ctx, "", 10)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)

		err = store.CreateNote(ctx, "", &models.Note{Title: "t"})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("NotesRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		note := &models.Note{Title: "T", Content: "C"}
		require.NoError(t, store.CreateNote(ctx, "tenant-a", note))
		assert.NotEmpty(t, note.ID)
		assert.False(t, note.CreatedAt.IsZero())

		tagged := &models.Note{Title: "T2", Content: "C2", Tags: []string{"go", "notes"}}
		require.NoError(t, store.CreateNote(ctx, "tenant-a", tagged))

		notes, err := store.ListNotes(ctx, "tenant-a", 20)
		require.NoError(t, err)
		require.Len(t, notes, 2)

		byID := map[string]models.Note{}
		for _, n := range notes {
			byID[n.ID] = n
		}
		assert.Equal(t, "T", byID[note.ID].Title)
		assert.Equal(t, "C", byID[note.ID].Content)
		assert.Equal(t, []string{}, byID[note.ID].Tags)
		assert.Equal(t, []string{"go", "notes"}, byID[tagged.ID].Tags)
	})

	t.Run("ListNotesHonoursLimit", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := range 5 {
			require.NoError(t, store.CreateNote(ctx, "tenant-a", &models.Note{Title: fmt.Sprintf("n%d", i), Content: "c"}))
		}

		notes, err := store.ListNotes(ctx, "tenant-a", 3)
		require.NoError(t, err)
		assert.Len(t, notes, 3)

		notes, err = store.ListNotes(ctx, "tenant-a", 0)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("NotesAreTenantScoped", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreateNote(ctx, "tenant-a", &models.Note{Title: "mine", Content: "private"}))

		notes, err := store.ListNotes(ctx, "tenant-b", 100)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})
}

func TestMemoryStorage(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) storage.Storage {
		return storage.NewMemoryStorage()
	})
}

func TestMemoryStorage_ThreadCreatedOnFirstAppend(t *testing.T) {
	store := storage.NewMemoryStorage()

	ctx := context.Background()

	turns, err := store.LatestTurns(ctx, "tenant-a", "thread-1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, store.AppendTurn(ctx, "tenant-a", "thread-1", &models.Turn{Role: models.RoleUser, Content: "hi"}))

	turns, err = store.LatestTurns(ctx, "tenant-a", "thread-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi", turns[0].Content)

	turns, err = store.LatestTurns(ctx, "tenant-b", "thread-1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStorage_ListReturnsCopies(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateNote(ctx, "tenant-a", &models.Note{Title: "t", Content: "c", Tags: []string{"a"}}))

	notes, err := store.ListNotes(ctx, "tenant-a", 10)
	require.NoError(t, err)
	notes[0].Tags[0] = "mutated"

	notes, err = store.ListNotes(ctx, "tenant-a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, notes[0].Tags)
}

func TestSQLiteStorage(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) storage.Storage {
		path := filepath.Join(t.TempDir(), "unimind.db")
		store, err := storage.NewSQLiteStorage(context.Background(), path, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestPostgresStorage(t *testing.T) {
	if os.Getenv("UNIMIND_TEST_POSTGRES_HOST") == "" {
		t.Skip("UNIMIND_TEST_POSTGRES_HOST not set")
	}

	runStoreSuite(t, func(t *testing.T) storage.Storage {
		store, err := storage.NewPostgresStorage(context.Background(), storage.DatabaseConfig{
			Host:     os.Getenv("UNIMIND_TEST_POSTGRES_HOST"),
			Port:     5432,
			User:     "postgres",
			Password: os.Getenv("UNIMIND_TEST_POSTGRES_PASSWORD"),
			DBName:   "postgres",
			SSLMode:  "disable",
		}, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return &tenantPrefixed{Storage: store, prefix: uuid.New().String()}
	})
}

// tenantPrefixed isolates each subtest on a shared database.
type tenantPrefixed struct {
	storage.Storage
	prefix string
}

func (s *tenantPrefixed) scope(tenantID string) string {
	if tenantID == "" {
		return ""
	}
	return s.prefix + "/" + tenantID
}

func (s *tenantPrefixed) AppendTurn(ctx context.Context, tenantID, threadID string, turn *models.Turn) error {
	return s.Storage.AppendTurn(ctx, s.scope(tenantID), threadID, turn)
}

func (s *tenantPrefixed) LatestTurns(ctx context.Context, tenantID, threadID string, limit int) ([]models.Turn, error) {
	return s.Storage.LatestTurns(ctx, s.scope(tenantID), threadID, limit)
}

func (s *tenantPrefixed) CreateNote(ctx context.Context, tenantID string, note *models.Note) error {
	return s.Storage.CreateNote(ctx, s.scope(tenantID), note)
}

func (s *tenantPrefixed) ListNotes(ctx context.Context, tenantID string, limit int) ([]models.Note, error) {
	return s.Storage.ListNotes(ctx, s.scope(tenantID), limit)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Options{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	store, err := storage.New(context.Background(), storage.Options{}, zap.NewNop())
	require.NoError(t, err)
	_, ok := store.(*storage.MemoryStorage)
	assert.True(t, ok)
}
