package machine_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func label(u ports.SnapshotUpdate) string {
	if u.Event == nil {
		return "start"
	}
	return u.Event.Type
}

func TestActor_SendBeforeStart(t *testing.T) {
	a := machine.NewActor(jugMachine(t))
	assert.False(t, a.Started())
	assert.ErrorIs(t, a.Send(domain.NewEvent("fill3", nil)), machine.ErrNotStarted)
}

func TestActor_NotifiesInOrder(t *testing.T) {
	a := machine.NewActor(jugMachine(t))

	var log []string
	a.Subscribe(func(u ports.SnapshotUpdate) { log = append(log, "1:"+label(u)) })
	a.Subscribe(func(u ports.SnapshotUpdate) { log = append(log, "2:"+label(u)) })

	require.NoError(t, a.Start())
	require.NoError(t, a.Start(), "second start is a no-op")
	require.NoError(t, a.Send(domain.NewEvent("fill3", nil)))

	assert.Equal(t, []string{"1:start", "2:start", "1:fill3", "2:fill3"}, log)
	assert.Equal(t, 3, a.Snapshot().Context["jug3"])
}

func TestActor_ReentrantSendIsQueued(t *testing.T) {
	a := machine.NewActor(jugMachine(t))

	var log []string
	a.Subscribe(func(u ports.SnapshotUpdate) {
		log = append(log, "1:"+label(u))
		if label(u) == "fill5" {
			require.NoError(t, a.Send(domain.NewEvent("pour5to3", nil)))
		}
	})
	a.Subscribe(func(u ports.SnapshotUpdate) { log = append(log, "2:"+label(u)) })

	require.NoError(t, a.Start())
	require.NoError(t, a.Send(domain.NewEvent("fill5", nil)))

	assert.Equal(t, []string{"1:start", "2:start", "1:fill5", "2:fill5", "1:pour5to3", "2:pour5to3"}, log)
	snap := a.Snapshot()
	assert.Equal(t, 3, snap.Context["jug3"])
	assert.Equal(t, 2, snap.Context["jug5"])
}

func TestActor_UpdateCarriesPrevAndEvent(t *testing.T) {
	a := machine.NewActor(jugMachine(t))
	require.NoError(t, a.Start())

	var got ports.SnapshotUpdate
	unsubscribe := a.Subscribe(func(u ports.SnapshotUpdate) { got = u })
	require.NoError(t, a.Send(domain.NewEvent("fill5", nil)))

	require.NotNil(t, got.Prev)
	require.NotNil(t, got.Event)
	assert.Equal(t, 0, got.Prev.Context["jug5"])
	assert.Equal(t, 5, got.Snapshot.Context["jug5"])
	assert.Equal(t, "fill5", got.Event.Type)

	unsubscribe()
	unsubscribe()
	require.NoError(t, a.Send(domain.NewEvent("empty5", nil)))
	assert.Equal(t, "fill5", got.Event.Type, "unsubscribed callbacks are not called")
}

func TestActor_WithSnapshot(t *testing.T) {
	m := jugMachine(t)
	restored, err := m.Resolve(domain.ObservedState{Value: domain.Atomic("solving"), Context: map[string]any{"jug3": 3, "jug5": 1}})
	require.NoError(t, err)

	a := machine.NewActor(m, machine.WithSnapshot(restored))
	require.NoError(t, a.Start())
	require.NoError(t, a.Send(domain.NewEvent("pour3to5", nil)))
	assert.True(t, a.Snapshot().Done)
	assert.Equal(t, 4, a.Snapshot().Context["jug5"])
}

func TestActor_ConcurrentSends(t *testing.T) {
	b := counterMachine(t)
	a := machine.NewActor(b)
	require.NoError(t, a.Start())

	var mu sync.Mutex
	var counts []int
	a.Subscribe(func(u ports.SnapshotUpdate) {
		mu.Lock()
		counts = append(counts, u.Snapshot.Context["count"].(int))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Send(domain.NewEvent("inc", nil)))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, counts, 20)
	for i, c := range counts {
		assert.Equal(t, i+1, c, fmt.Sprintf("update %d out of order", i))
	}
}

func TestActor_PanickingSubscriberDoesNotStarveOthers(t *testing.T) {
	a := machine.NewActor(jugMachine(t))

	a.Subscribe(func(ports.SnapshotUpdate) { panic("broken subscriber") })
	var seen []string
	a.Subscribe(func(u ports.SnapshotUpdate) { seen = append(seen, label(u)) })

	require.NoError(t, a.Start())
	require.NoError(t, a.Send(domain.NewEvent("fill3", nil)))
	require.NoError(t, a.Send(domain.NewEvent("fill5", nil)))

	assert.Equal(t, []string{"start", "fill3", "fill5"}, seen)
}
