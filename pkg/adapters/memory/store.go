// Package memory provides an in-memory ports.MemoryStore for tests and single-process runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Store implements ports.MemoryStore in memory.
// Records are kept encoded, so loaded values never alias appended ones.
// Safe for concurrent use.
type Store struct {
	data map[string][][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][][]byte),
	}
}

// Append stores the record under the episode of its payload.
func (s *Store) Append(ctx context.Context, ev domain.MemoryEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode memory event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	episode := ev.EpisodeID()
	s.data[episode] = append(s.data[episode], raw)
	return nil
}

// Load returns the records of an episode in append order.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.data[episodeID]
	if !ok {
		return nil, domain.ErrEpisodeNotFound
	}

	out := make([]domain.MemoryEvent, 0, len(rows))
	for _, raw := range rows {
		var ev domain.MemoryEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode memory event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Delete removes an episode.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, episodeID)
	return nil
}

// Episodes returns the known episodes, sorted.
func (s *Store) Episodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes := make([]string, 0, len(s.data))
	for id := range s.data {
		episodes = append(episodes, id)
	}
	sort.Strings(episodes)
	return episodes, nil
}
