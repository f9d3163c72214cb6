package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/sqlite"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open("file:" + filepath.Join(t.TempDir(), "memory.db") + "?mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunMemoryStoreContract(t, open(t))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ports.RunMemoryStoreContract(t, store)
}

func TestSQLiteStore_Kinds(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, domain.MessageEvent(domain.Message{ID: "m1", EpisodeID: "ep"})))
	require.NoError(t, store.Append(ctx, domain.MessageEvent(domain.Message{ID: "m2", EpisodeID: "ep"})))
	require.NoError(t, store.Append(ctx, domain.FeedbackEvent(domain.Feedback{DecisionID: "d1", EpisodeID: "ep"})))

	kinds, err := store.Kinds(ctx, "ep")
	require.NoError(t, err)
	assert.Equal(t, map[domain.RecordKind]int{domain.KindMessage: 2, domain.KindFeedback: 1}, kinds)
}

func TestSQLiteStore_ReopenKeepsRecords(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "memory.db") + "?mode=rwc"
	ctx := context.Background()

	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, domain.MessageEvent(domain.Message{ID: "m1", EpisodeID: "ep"})))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(dsn)
	require.NoError(t, err)
	defer store.Close()
	loaded, err := store.Load(ctx, "ep")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "m1", loaded[0].Payload.(domain.Message).ID)
}
