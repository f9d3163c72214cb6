package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager implements ports.MemoryStore on top of another store, holding a
// per-episode lock around every call.
type Manager struct {
	store ports.MemoryStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager wraps store.
func NewManager(store ports.MemoryStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(episodeID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[episodeID]
	if !exists {
		entry = &lockEntry{}
		m.locks[episodeID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(episodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[episodeID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, episodeID)
	}
}

// WithLock runs fn while holding the lock of the episode. The context is
// checked once the lock is held, not while waiting for it.
func (m *Manager) WithLock(ctx context.Context, episodeID string, fn func(context.Context) error) error {
	entry := m.acquire(episodeID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(episodeID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Append stores ev under the lock of its episode.
func (m *Manager) Append(ctx context.Context, ev domain.MemoryEvent) error {
	return m.WithLock(ctx, ev.EpisodeID(), func(ctx context.Context) error {
		if err := m.store.Append(ctx, ev); err != nil {
			m.logger.Debug("append failed", "episode_id", ev.EpisodeID(), "kind", ev.Kind, "err", err)
			return err
		}
		return nil
	})
}

// Load returns the records of an episode.
func (m *Manager) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	var records []domain.MemoryEvent
	err := m.WithLock(ctx, episodeID, func(ctx context.Context) error {
		var err error
		records, err = m.store.Load(ctx, episodeID)
		return err
	})
	return records, err
}

// Delete removes an episode.
func (m *Manager) Delete(ctx context.Context, episodeID string) error {
	return m.WithLock(ctx, episodeID, func(ctx context.Context) error {
		return m.store.Delete(ctx, episodeID)
	})
}

// Episodes delegates to the store without locking.
func (m *Manager) Episodes(ctx context.Context) ([]string, error) {
	return m.store.Episodes(ctx)
}

// Store returns the wrapped store.
func (m *Manager) Store() ports.MemoryStore {
	return m.store
}

var _ ports.MemoryStore = (*Manager)(nil)
