package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

const ext = ".jsonl"

// Store implements ports.MemoryStore on the local filesystem. Each episode is
// a JSON Lines file with one record per line, appended and fsynced per
// record.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// NewStore creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".tendril/memory".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".tendril", "memory")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(episodeID string) (string, error) {
	if episodeID == "" {
		return "", fmt.Errorf("episode id cannot be empty")
	}
	if strings.ContainsAny(episodeID, `/\`) || episodeID == "." || episodeID == ".." {
		return "", fmt.Errorf("invalid episode id %q", episodeID)
	}
	return filepath.Join(s.BasePath, episodeID+ext), nil
}

// Append writes the record at the end of its episode file.
func (s *Store) Append(ctx context.Context, ev domain.MemoryEvent) error {
	path, err := s.path(ev.EpisodeID())
	if err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal memory event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure memory directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open episode file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write episode file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to fsync episode file: %w", err)
	}
	return nil
}

// Load reads an episode file. A truncated last line, left by a crash during
// Append, is ignored.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.MemoryEvent, error) {
	path, err := s.path(episodeID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to read episode file: %w", err)
	}
	defer f.Close()

	var out []domain.MemoryEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var pending error
	for scanner.Scan() {
		if pending != nil {
			return nil, pending
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev domain.MemoryEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			pending = fmt.Errorf("failed to unmarshal memory event: %w", err)
			continue
		}
		out = append(out, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan episode file: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrEpisodeNotFound
	}
	return out, nil
}

// Delete removes the episode file.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	path, err := s.path(episodeID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete episode file: %w", err)
	}
	return nil
}

// Episodes lists the episode files, sorted.
func (s *Store) Episodes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	var episodes []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			episodes = append(episodes, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	sort.Strings(episodes)
	return episodes, nil
}
