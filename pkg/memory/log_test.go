package memory_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	memstore "github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(id string) domain.Message {
	m := domain.UserMessage("message " + id)
	m.ID = id
	m.EpisodeID = "ep"
	return m
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestLog_AppendsByKind(t *testing.T) {
	log := memory.NewLog()
	log.Apply(domain.MessageEvent(message("m1")))
	log.Apply(domain.ObservationEvent(domain.Observation{ID: "o1", EpisodeID: "ep"}))
	log.Apply(domain.DecisionEvent(domain.Decision{ID: "d1", EpisodeID: "ep"}))
	log.Apply(domain.FeedbackEvent(domain.Feedback{DecisionID: "d1", EpisodeID: "ep"}))
	log.Apply(domain.MessageEvent(message("m2")))

	assert.Equal(t, []string{"m1", "m2"}, ids(log.Messages()))
	require.Len(t, log.Observations(), 1)
	require.Len(t, log.Decisions(), 1)
	require.Len(t, log.Feedback(), 1)
	assert.Equal(t, "d1", log.Feedback()[0].DecisionID)
}

func TestLog_DropsUnknownEvents(t *testing.T) {
	var buf bytes.Buffer
	log := memory.NewLog(memory.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	called := false
	log.SubscribeAll(func(domain.MemoryEvent) { called = true })

	log.Apply(domain.MemoryEvent{Kind: "agent.dream", Payload: "zzz"})
	log.Apply(domain.MemoryEvent{Kind: domain.KindMessage, Payload: domain.Decision{}})

	assert.False(t, called)
	assert.Empty(t, log.Messages())
	assert.Contains(t, buf.String(), "dropping memory event")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestLog_MessageOrdering(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("messages are read back in append order", prop.ForAll(
		func(n int) bool {
			log := memory.NewLog()
			var want []string
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("m%d", i)
				want = append(want, id)
				log.Apply(domain.MessageEvent(message(id)))
			}
			return fmt.Sprint(ids(log.Messages())) == fmt.Sprint(want)
		},
		gen.IntRange(0, 50),
	))

	properties.Property("unsubscribing after N notifications yields exactly N", prop.ForAll(
		func(n, extra int) bool {
			log := memory.NewLog()
			received := 0
			var cancel func()
			cancel = log.OnMessage(func(domain.Message) {
				received++
				if received == n {
					cancel()
				}
			})
			for i := 0; i < n+extra; i++ {
				log.Apply(domain.MessageEvent(message(fmt.Sprint(i))))
			}
			return received == n
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestLog_SubscribersSeeOnlyTheirKind(t *testing.T) {
	log := memory.NewLog()
	var decisions, messages int
	log.OnDecision(func(domain.Decision) { decisions++ })
	log.OnMessage(func(domain.Message) { messages++ })

	log.Apply(domain.MessageEvent(message("m1")))
	log.Apply(domain.DecisionEvent(domain.Decision{ID: "d1"}))
	log.Apply(domain.MessageEvent(message("m2")))

	assert.Equal(t, 1, decisions)
	assert.Equal(t, 2, messages)
}

func TestLog_ReentrantApplyIsQueued(t *testing.T) {
	log := memory.NewLog()

	var order []string
	log.OnMessage(func(m domain.Message) {
		order = append(order, "a:"+m.ID)
		if m.ID == "m1" {
			log.Apply(domain.MessageEvent(message("reply")))
		}
	})
	log.OnMessage(func(m domain.Message) { order = append(order, "b:"+m.ID) })

	log.Apply(domain.MessageEvent(message("m1")))

	assert.Equal(t, []string{"a:m1", "b:m1", "a:reply", "b:reply"}, order)
	assert.Equal(t, []string{"m1", "reply"}, ids(log.Messages()))
}

func TestLog_CancelTakesEffectImmediately(t *testing.T) {
	log := memory.NewLog()
	var second int
	var cancelSecond func()
	log.OnMessage(func(domain.Message) { cancelSecond() })
	cancelSecond = log.OnMessage(func(domain.Message) { second++ })

	log.Apply(domain.MessageEvent(message("m1")))
	assert.Zero(t, second, "cancelled before its turn in the same dispatch")
	cancelSecond()
}

func TestLog_ConcurrentAppends(t *testing.T) {
	log := memory.NewLog()
	var notified sync.WaitGroup
	var mu sync.Mutex
	var seen []string
	log.OnMessage(func(m domain.Message) {
		mu.Lock()
		seen = append(seen, m.ID)
		mu.Unlock()
		notified.Done()
	})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		notified.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Apply(domain.MessageEvent(message(fmt.Sprint(i))))
		}(i)
	}
	wg.Wait()
	notified.Wait()

	assert.Len(t, log.Messages(), 40)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids(log.Messages()), seen, "notifications follow append order")
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStore()

	src := memory.NewLog()
	stop := memory.Persist(ctx, src, store)
	src.Apply(domain.MessageEvent(message("m1")))
	src.Apply(domain.DecisionEvent(domain.Decision{ID: "d1", EpisodeID: "ep", Strategy: "simple"}))
	stop()
	src.Apply(domain.MessageEvent(message("m2")))

	dst := memory.NewLog()
	n, err := memory.Restore(ctx, dst, store, "ep")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1"}, ids(dst.Messages()))
	require.Len(t, dst.Decisions(), 1)
	assert.Equal(t, "simple", dst.Decisions()[0].Strategy)

	_, err = memory.Restore(ctx, dst, store, "missing")
	assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
}

func TestLog_PanickingSubscriberDoesNotStarveOthers(t *testing.T) {
	var buf bytes.Buffer
	log := memory.NewLog(memory.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	log.OnMessage(func(domain.Message) { panic("broken subscriber") })
	var healthy []string
	log.OnMessage(func(m domain.Message) { healthy = append(healthy, m.ID) })

	for _, id := range []string{"m1", "m2", "m3"} {
		assert.NotPanics(t, func() { log.Apply(domain.MessageEvent(message(id))) })
	}

	assert.Len(t, log.Messages(), 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, healthy)
	assert.Contains(t, buf.String(), "memory subscriber panicked")
}
