package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Contract(t *testing.T) {
	ports.RunMemoryStoreContract(t, NewManager(memory.NewStore()))
}

func message(episode string) domain.MemoryEvent {
	return domain.MessageEvent(domain.Message{
		ID: domain.NewID(), Role: domain.RoleUser, EpisodeID: episode,
		Content: []domain.Part{domain.TextPart("hi")},
	})
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		ep := fmt.Sprintf("episode-%d", i)
		require.NoError(t, mgr.Append(ctx, message(ep)))
		require.NoError(t, mgr.Delete(ctx, ep))
	}
	assert.Empty(t, mgr.locks, "locks are released once unused")
}

// overlapStore records whether two calls for one episode ever ran at once.
type overlapStore struct {
	ports.MemoryStore
	inFlight map[string]*int32
	mu       sync.Mutex
	overlap  atomic.Bool
}

func (s *overlapStore) Append(ctx context.Context, ev domain.MemoryEvent) error {
	s.mu.Lock()
	n, ok := s.inFlight[ev.EpisodeID()]
	if !ok {
		n = new(int32)
		s.inFlight[ev.EpisodeID()] = n
	}
	s.mu.Unlock()

	if atomic.AddInt32(n, 1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(n, -1)
	return s.MemoryStore.Append(ctx, ev)
}

func TestManager_SerializesPerEpisode(t *testing.T) {
	inner := &overlapStore{MemoryStore: memory.NewStore(), inFlight: map[string]*int32{}}
	mgr := NewManager(inner)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, mgr.Append(ctx, message(fmt.Sprintf("ep-%d", i%2))))
		}(i)
	}
	wg.Wait()

	assert.False(t, inner.overlap.Load())
	records, err := mgr.Load(ctx, "ep-0")
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestManager_CancelledContext(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mgr.Append(ctx, message("ep"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = mgr.Load(context.Background(), "ep")
	assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
}
