package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMemoryStoreContract runs a suite of tests to verify that a MemoryStore
// implementation adheres to the defined interface contract.
func RunMemoryStoreContract(t *testing.T, store MemoryStore) {
	ctx := context.Background()
	episodeID := "contract-test-episode-" + time.Now().Format("20060102150405.000000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	records := func(episode string) []domain.MemoryEvent {
		ev := domain.NewEvent("fill3", map[string]any{"reasoning": "start"})
		return []domain.MemoryEvent{
			domain.MessageEvent(domain.Message{
				ID: "m1", Role: domain.RoleUser, EpisodeID: episode, Timestamp: now,
				Content: []domain.Part{domain.TextPart("fill the jug")},
			}),
			domain.ObservationEvent(domain.Observation{
				ID: "o1", EpisodeID: episode, Timestamp: now,
				State: domain.ObservedState{Value: domain.Atomic("solving"), Context: map[string]any{"jug3": 0}},
			}),
			domain.DecisionEvent(domain.Decision{
				ID: "d1", Strategy: "simple", Goal: "fill", NextEvent: &ev, EpisodeID: episode, Timestamp: now,
			}),
			domain.FeedbackEvent(domain.Feedback{
				DecisionID: "d1", Score: 1, Comment: "ok", EpisodeID: episode, Timestamp: now,
			}),
		}
	}

	t.Run("Append and Load", func(t *testing.T) {
		for _, rec := range records(episodeID) {
			require.NoError(t, store.Append(ctx, rec), "Append should not return error")
		}

		loaded, err := store.Load(ctx, episodeID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded, 4)

		kinds := make([]domain.RecordKind, len(loaded))
		for i, rec := range loaded {
			kinds[i] = rec.Kind
		}
		assert.Equal(t, []domain.RecordKind{
			domain.KindMessage, domain.KindObservation, domain.KindDecision, domain.KindFeedback,
		}, kinds, "records must come back in append order")

		msg, ok := loaded[0].Payload.(domain.Message)
		require.True(t, ok)
		assert.Equal(t, "fill the jug", msg.Text())

		dec, ok := loaded[2].Payload.(domain.Decision)
		require.True(t, ok)
		require.NotNil(t, dec.NextEvent)
		assert.Equal(t, "fill3", dec.NextEvent.Type)
		assert.Equal(t, "start", dec.NextEvent.Params["reasoning"])

		fb, ok := loaded[3].Payload.(domain.Feedback)
		require.True(t, ok)
		assert.Equal(t, "d1", fb.DecisionID)
		assert.True(t, now.Equal(fb.Timestamp))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+episodeID)
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
	})

	t.Run("Episodes", func(t *testing.T) {
		other := episodeID + "-other"
		require.NoError(t, store.Append(ctx, records(other)[0]))
		defer func() { _ = store.Delete(ctx, other) }()

		episodes, err := store.Episodes(ctx)
		require.NoError(t, err)
		assert.Contains(t, episodes, episodeID)
		assert.Contains(t, episodes, other)

		loaded, err := store.Load(ctx, other)
		require.NoError(t, err)
		assert.Len(t, loaded, 1, "episodes must not share records")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, episodeID), "Delete should not return error")

		_, err := store.Load(ctx, episodeID)
		assert.ErrorIs(t, err, domain.ErrEpisodeNotFound, "Load after Delete should return ErrEpisodeNotFound")

		episodes, err := store.Episodes(ctx)
		require.NoError(t, err)
		assert.NotContains(t, episodes, episodeID)
	})
}
