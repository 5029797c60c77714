package index

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

type cachedStore struct {
	modTime time.Time
	size    int64
	records map[string]*Record
}

// StoreCache keeps recently loaded stores in memory and reloads a store only
// when its file changes on disk. Returned maps are shared and must not be
// modified by callers.
type StoreCache struct {
	c *cache.Cache
}

// NewStoreCache creates a cache whose entries expire after ttl.
func NewStoreCache(ttl time.Duration) *StoreCache {
	return &StoreCache{c: cache.New(ttl, 2*ttl)}
}

// Load returns the records for the store at path, from memory when the file
// is unchanged since it was last read.
func (s *StoreCache) Load(path string) (map[string]*Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.c.Delete(path)
			return map[string]*Record{}, nil
		}
		return nil, fmt.Errorf("stat store %s: %w", path, err)
	}

	if v, ok := s.c.Get(path); ok {
		cs := v.(*cachedStore)
		if cs.modTime.Equal(info.ModTime()) && cs.size == info.Size() {
			return cs.records, nil
		}
	}

	records, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.c.SetDefault(path, &cachedStore{modTime: info.ModTime(), size: info.Size(), records: records})
	return records, nil
}

// Invalidate drops any cached copy of the store at path.
func (s *StoreCache) Invalidate(path string) {
	s.c.Delete(path)
}
