// Package sqlite provides a SQLite-backed ports.MemoryStore using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    episode_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    record TEXT NOT NULL,
    created_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_memory_records_episode ON memory_records (episode_id, seq);
`

// Store implements ports.MemoryStore on a SQLite database. Every record is a
// row; the autoincrement sequence keeps append order.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and migrates the schema.
// dsn examples: "file:tendril.db?mode=rwc" or ":memory:".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}
	s, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing connection and migrates the schema.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts the record.
func (s *Store) Append(ctx context.Context, ev domain.MemoryEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal memory event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_records (episode_id, kind, record) VALUES (?, ?, ?)`,
		ev.EpisodeID(), string(ev.Kind), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert memory event: %w", err)
	}
	return nil
}

// Load returns the records of an episode in append order.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM memory_records WHERE episode_id = ? ORDER BY seq`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory records: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan memory record: %w", err)
		}
		var ev domain.MemoryEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrEpisodeNotFound
	}
	return out, nil
}

// Episodes lists the episode ids, sorted.
func (s *Store) Episodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT episode_id FROM memory_records ORDER BY episode_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	episodes := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		episodes = append(episodes, id)
	}
	return episodes, rows.Err()
}

// Delete removes every record of the episode.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	return nil
}

// Kinds counts the records of an episode by kind.
func (s *Store) Kinds(ctx context.Context, episodeID string) (map[domain.RecordKind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM memory_records WHERE episode_id = ? GROUP BY kind`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count memory records: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RecordKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[domain.RecordKind(kind)] = n
	}
	return out, rows.Err()
}
