// Package cache provides a bounded LRU cache for computed embeddings.
//
// The same cache type backs both the content-embedding cache and the
// query-embedding cache. Keys are content hashes, so equal text maps to the
// same entry regardless of which document or query produced it.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// ComputeFunc produces the embedding for a cache miss.
type ComputeFunc func(ctx context.Context) ([]float32, error)

// Key returns the cache key for text: a SHA-256 content hash.
// Hashing keeps memory bounded for large chunk contents and avoids holding
// raw text in the cache.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embeddings is a bounded LRU cache of embedding vectors with single-flight
// computation: concurrent misses on the same key run compute once and share
// the result. Failed computations are not cached.
//
// Cached vectors are shared, callers must treat them as read-only.
type Embeddings struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List
	inflight  map[string]*call

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   string
	value []float32
}

type call struct {
	done  chan struct{}
	value []float32
	err   error
}

// NewEmbeddings creates an LRU cache holding up to capacity entries.
// A capacity below 1 is treated as 1.
func NewEmbeddings(capacity int) *Embeddings {
	if capacity < 1 {
		capacity = 1
	}
	return &Embeddings{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		inflight:  make(map[string]*call),
	}
}

// Get returns the cached vector for key, marking it recently used.
func (c *Embeddings) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// GetOrCompute returns the cached vector for key, computing and caching it
// on a miss. If another goroutine is already computing the same key, the
// call waits for that result instead of recomputing.
func (c *Embeddings) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) ([]float32, error) {
	c.mu.Lock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		value := ent.Value.(*entry).value
		c.mu.Unlock()
		return value, nil
	}
	c.misses.Add(1)

	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.value, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.value, cl.err = compute(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if cl.err == nil {
		c.add(key, cl.value)
	}
	c.mu.Unlock()
	close(cl.done)

	return cl.value, cl.err
}

// add inserts a value, evicting the least recently used entries beyond
// capacity. Caller must hold c.mu.
func (c *Embeddings) add(key string, value []float32) {
	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*entry).value = value
		return
	}

	element := c.evictList.PushFront(&entry{key: key, value: value})
	c.items[key] = element

	for c.evictList.Len() > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.evictList.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Purge drops all cached entries. In-flight computations are unaffected.
func (c *Embeddings) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Len returns the number of cached entries.
func (c *Embeddings) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns the number of cache hits and misses.
func (c *Embeddings) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
