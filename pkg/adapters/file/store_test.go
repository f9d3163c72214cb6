package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ports.RunMemoryStoreContract(t, store)
}

func TestFileStore_TruncatedTail(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()

	msg := domain.MessageEvent(domain.Message{ID: "m1", Role: domain.RoleUser, EpisodeID: "ep"})
	require.NoError(t, store.Append(ctx, msg))

	f, err := os.OpenFile(filepath.Join(dir, "ep.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"kind":"message","payl`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	loaded, err := store.Load(ctx, "ep")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestFileStore_RejectsPathEscapes(t *testing.T) {
	store := file.NewStore(t.TempDir())
	err := store.Append(context.Background(), domain.MessageEvent(domain.Message{ID: "m1", EpisodeID: "../escape"}))
	assert.Error(t, err)

	_, err = store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestFileStore_EpisodesOnMissingDir(t *testing.T) {
	store := file.NewStore(filepath.Join(t.TempDir(), "missing"))
	episodes, err := store.Episodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, episodes)
}
