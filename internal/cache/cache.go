// Package cache tracks downloaded press-release documents so repeated
// sessions skip fetching artifacts that already exist on disk. The index is
// a JSON file that survives restarts.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fadapulse/pkg/contracts/domain"
)

type indexFile struct {
	Files    map[string]indexEntry `json:"files"`
	Metadata indexMetadata         `json:"metadata"`
}

type indexEntry struct {
	URL          string    `json:"url"`
	Path         string    `json:"path"`
	DownloadTime time.Time `json:"download_time"`
}

type indexMetadata struct {
	LastUpdated *time.Time `json:"last_updated"`
}

// Store is a persistent document cache keyed by document identity
// (the canonical filename). Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	indexPath string
	index     indexFile
	logger    *slog.Logger
}

// NewStore loads the index at indexPath, starting empty when the file is
// missing or corrupt. A corrupt index is logged and discarded rather than
// failing startup.
func NewStore(indexPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		indexPath: indexPath,
		index:     indexFile{Files: make(map[string]indexEntry)},
		logger:    logger,
	}

	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache index: %w", err)
	}

	if err := json.Unmarshal(data, &s.index); err != nil {
		logger.Warn("cache index corrupt, starting empty",
			"path", indexPath,
			"error", err,
		)
		s.index = indexFile{Files: make(map[string]indexEntry)}
		return s, nil
	}
	if s.index.Files == nil {
		s.index.Files = make(map[string]indexEntry)
	}

	return s, nil
}

// Lookup returns the cached entry for identity. A hit requires the recorded
// artifact to still exist on disk; stale entries report a miss.
func (s *Store) Lookup(identity string) (domain.CacheEntry, bool) {
	s.mu.RLock()
	entry, ok := s.index.Files[identity]
	s.mu.RUnlock()

	if !ok {
		return domain.CacheEntry{}, false
	}

	if _, err := os.Stat(entry.Path); err != nil {
		s.logger.Debug("cache entry points at missing artifact",
			"identity", identity,
			"path", entry.Path,
		)
		return domain.CacheEntry{}, false
	}

	return domain.CacheEntry{
		Identity:  identity,
		Path:      entry.Path,
		FetchedAt: entry.DownloadTime,
	}, true
}

// Record stores the artifact location for identity and persists the index.
// Recording the same identity again overwrites the previous entry.
func (s *Store) Record(identity, url, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Files[identity] = indexEntry{
		URL:          url,
		Path:         path,
		DownloadTime: time.Now().UTC(),
	}

	return s.persistLocked()
}

// Remove drops identity from the index. Missing identities are a no-op.
func (s *Store) Remove(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Files[identity]; !ok {
		return nil
	}
	delete(s.index.Files, identity)
	return s.persistLocked()
}

// Len reports the number of indexed documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index.Files)
}

// Clear empties the index and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Files = make(map[string]indexEntry)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	now := time.Now().UTC()
	s.index.Metadata.LastUpdated = &now

	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	// Write-then-rename keeps the index readable if the process dies mid-write.
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath); err != nil {
		return fmt.Errorf("replace cache index: %w", err)
	}

	return nil
}
