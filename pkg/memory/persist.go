package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Persist writes every record applied to log through to store until the
// returned stop function is called. Store failures are logged, never
// propagated to the appender.
func Persist(ctx context.Context, log *Log, store ports.MemoryStore) (stop func()) {
	return log.SubscribeAll(func(ev domain.MemoryEvent) {
		if err := store.Append(ctx, ev); err != nil {
			log.logger.Error("failed to persist memory event",
				"kind", string(ev.Kind),
				"episode_id", ev.EpisodeID(),
				"err", err,
			)
		}
	})
}

// Restore replays an episode from store into log, in the stored order.
// Subscribers see the replayed records, so call it before Persist to avoid
// writing them back.
func Restore(ctx context.Context, log *Log, store ports.MemoryStore, episodeID string) (int, error) {
	events, err := store.Load(ctx, episodeID)
	if err != nil {
		return 0, fmt.Errorf("restore episode %s: %w", episodeID, err)
	}
	for _, ev := range events {
		log.Apply(ev)
	}
	return len(events), nil
}
