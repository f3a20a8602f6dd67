package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"vectorstack/internal/port"
	"vectorstack/precise"
)

// QueryCache is an LRU of search results with a TTL. Invalidate drops
// every entry; entries stored under an older generation are never served.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []precise.SearchResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(index string, req precise.SearchRequest) string {
	h := sha256.New()
	h.Write([]byte(index))
	h.Write([]byte{0})
	_ = json.NewEncoder(h).Encode(req)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(index string, req precise.SearchRequest) ([]precise.SearchResult, bool) {
	key := cacheKey(index, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}
	c.moveToEnd(key)
	return entry.results, true
}

func (c *QueryCache) Put(index string, req precise.SearchRequest, results []precise.SearchResult) {
	key := cacheKey(index, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}
	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedSearcher serves repeated queries against one index from a QueryCache.
type CachedSearcher struct {
	index    string
	searcher port.Searcher
	cache    *QueryCache
}

func NewCachedSearcher(index string, searcher port.Searcher, cache *QueryCache) *CachedSearcher {
	return &CachedSearcher{
		index:    index,
		searcher: searcher,
		cache:    cache,
	}
}

func (s *CachedSearcher) Search(ctx context.Context, req precise.SearchRequest) ([]precise.SearchResult, error) {
	if results, hit := s.cache.Get(s.index, req); hit {
		return results, nil
	}
	results, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Put(s.index, req, results)
	return results, nil
}
