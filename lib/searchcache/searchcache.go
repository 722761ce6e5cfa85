// Package searchcache persists raw portal result documents on disk,
// one file per search keyword string.
package searchcache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store caches fetched documents in a directory. The cache key is the
// raw keyword string, used verbatim as the file name: keys differing
// only in case are distinct entries, and the same keywords searched
// with a different match mode or state filter share one entry. Entries
// never expire; an entry is only replaced when a forced fetch for the
// same key succeeds.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the conventional cache location under the
// system temp directory.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "handelsregister_cache")
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

// Get returns the cached document for key, reporting ok=false on a miss.
func (s *Store) Get(key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return raw, true, nil
}

// Put writes the document under key, overwriting any prior entry.
// Concurrent writers to the same key race; the last write wins.
func (s *Store) Put(key string, raw []byte) error {
	err := os.WriteFile(s.path(key), raw, 0o644)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
