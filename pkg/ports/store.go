package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// MemoryStore persists agent memory beyond the process lifetime.
// Records are kept per episode in append order.
type MemoryStore interface {
	// Append stores one record under the episode of its payload.
	Append(ctx context.Context, ev domain.MemoryEvent) error

	// Load returns every record of an episode in append order.
	// Returns domain.ErrEpisodeNotFound if the episode has no records.
	Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error)

	// Episodes lists the known episode ids.
	Episodes(ctx context.Context) ([]string, error)

	// Delete removes every record of an episode.
	Delete(ctx context.Context, episodeID string) error
}
