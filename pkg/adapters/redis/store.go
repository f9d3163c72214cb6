// Package redis provides a Redis-backed ports.MemoryStore.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "tendril:episode:"

// Store implements ports.MemoryStore using Redis. Each episode is a list of
// encoded records; a sorted set indexes the episodes by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for episodes, refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for episodes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(episodeID string) string {
	return s.prefix + episodeID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Append pushes the record onto its episode list.
func (s *Store) Append(ctx context.Context, ev domain.MemoryEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal memory event: %w", err)
	}
	episode := ev.EpisodeID()

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(episode), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(episode), s.ttl)
	}

	// Score = expiry time. Without a TTL the episode never leaves the index.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: episode})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Load returns the records of an episode in append order.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	rows, err := s.client.LRange(ctx, s.key(episodeID), 0, -1).Result()
	if err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrEpisodeNotFound
	}

	out := make([]domain.MemoryEvent, 0, len(rows))
	for _, row := range rows {
		var ev domain.MemoryEvent
		if err := json.Unmarshal([]byte(row), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Delete removes the episode.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(episodeID))
	pipe.ZRem(ctx, s.indexKey(), episodeID)
	_, err := pipe.Exec(ctx)
	return err
}

// Episodes lists the episodes that have not expired. Expired index entries
// are pruned lazily.
func (s *Store) Episodes(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired episodes: %w", err)
	}

	episodes, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	return episodes, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
