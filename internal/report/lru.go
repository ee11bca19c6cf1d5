package report

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore keeps the most recently used batches in memory and delegates
// to a backing Store on miss.
type LRUStore struct {
	cache *lru.Cache[string, *Batch]
	back  Store
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacities below 1 are raised to 1.
func NewLRUStore(size int, back Store) *LRUStore {
	if size < 1 {
		size = 1
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *Batch](size)
	return &LRUStore{cache: cache, back: back}
}

// Save caches the batch and writes it through to the backing store.
func (s *LRUStore) Save(batch *Batch) error {
	s.cache.Add(batch.ID, batch)
	return s.back.Save(batch)
}

// Load checks the cache first. On miss, it loads from the backing store
// and promotes the batch into the cache.
func (s *LRUStore) Load(batchID string) (*Batch, error) {
	if b, ok := s.cache.Get(batchID); ok {
		return b, nil
	}
	batch, err := s.back.Load(batchID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(batch.ID, batch)
	return batch, nil
}

// Recent returns the cached batches, most recently used first. It does
// not change their recency.
func (s *LRUStore) Recent() []*Batch {
	keys := s.cache.Keys() // oldest first
	out := make([]*Batch, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if b, ok := s.cache.Peek(keys[i]); ok {
			out = append(out, b)
		}
	}
	return out
}
