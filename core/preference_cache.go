package core

import (
	"container/list"
	"sync"
	"time"

	"github.com/whisperwalls/censor/models"
)

const (
	KB int = 1024
	MB     = 1024 * KB
)

type preferenceCacheEntry struct {
	userID    string
	value     models.Preferences
	expiresAt time.Time
	sizeBytes int
}

// pendingLoad tracks store reads in flight for one user. Delete bumps gen so
// reads that started earlier cannot repopulate the cache.
type pendingLoad struct {
	gen     uint64
	readers int
}

// preferenceCache is an in-memory LRU cache with TTL, bounded by approximate size.
type preferenceCache struct {
	mu         sync.Mutex
	maxBytes   int64
	totalBytes int64
	items      map[string]*list.Element
	lru        *list.List
	pending    map[string]*pendingLoad
}

func newPreferenceCache(maxBytes int64) *preferenceCache {
	if maxBytes <= 0 {
		return nil
	}
	return &preferenceCache{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		pending:  make(map[string]*pendingLoad),
	}
}

func (c *preferenceCache) Get(userID string, now time.Time) (models.Preferences, bool) {
	if c == nil || userID == "" {
		return models.Preferences{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[userID]
	if !ok {
		return models.Preferences{}, false
	}
	entry := elem.Value.(*preferenceCacheEntry)
	if now.After(entry.expiresAt) {
		c.removeElement(elem)
		return models.Preferences{}, false
	}
	c.lru.MoveToFront(elem)
	return clonePreferences(entry.value), true
}

func (c *preferenceCache) Set(userID string, value models.Preferences, ttl time.Duration, now time.Time) {
	if c == nil || userID == "" || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(userID, value, ttl, now)
}

// BeginLoad registers a store read for userID and returns the generation
// to pass to FinishLoad or AbortLoad.
func (c *preferenceCache) BeginLoad(userID string) uint64 {
	if c == nil || userID == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[userID]
	if !ok {
		p = &pendingLoad{}
		c.pending[userID] = p
	}
	p.readers++
	return p.gen
}

// FinishLoad caches value unless userID was deleted after BeginLoad.
// It reports whether the value was stored.
func (c *preferenceCache) FinishLoad(userID string, gen uint64, value models.Preferences, ttl time.Duration, now time.Time) bool {
	if c == nil || userID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.releaseLocked(userID, gen) || ttl <= 0 {
		return false
	}
	c.setLocked(userID, value, ttl, now)
	return true
}

// AbortLoad ends a store read that produced nothing to cache.
func (c *preferenceCache) AbortLoad(userID string, gen uint64) {
	if c == nil || userID == "" {
		return
	}
	c.mu.Lock()
	c.releaseLocked(userID, gen)
	c.mu.Unlock()
}

// releaseLocked drops one reader and reports whether gen is still current.
func (c *preferenceCache) releaseLocked(userID string, gen uint64) bool {
	p, ok := c.pending[userID]
	if !ok {
		return false
	}
	p.readers--
	if p.readers <= 0 {
		delete(c.pending, userID)
	}
	return p.gen == gen
}

func (c *preferenceCache) setLocked(userID string, value models.Preferences, ttl time.Duration, now time.Time) {
	value = clonePreferences(value)
	expiresAt := now.Add(ttl)
	newSize := estimateEntrySizeBytes(userID, value)
	if int64(newSize) > c.maxBytes {
		return
	}

	if elem, ok := c.items[userID]; ok {
		entry := elem.Value.(*preferenceCacheEntry)
		c.totalBytes -= int64(entry.sizeBytes)
		entry.value = value
		entry.expiresAt = expiresAt
		entry.sizeBytes = newSize
		c.totalBytes += int64(newSize)
		c.lru.MoveToFront(elem)
		c.evictToFitLocked()
		return
	}

	elem := c.lru.PushFront(&preferenceCacheEntry{
		userID:    userID,
		value:     value,
		expiresAt: expiresAt,
		sizeBytes: newSize,
	})
	c.items[userID] = elem
	c.totalBytes += int64(newSize)
	c.evictToFitLocked()
}

func (c *preferenceCache) Delete(userID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[userID]; ok {
		p.gen++
	}
	if elem, ok := c.items[userID]; ok {
		c.removeElement(elem)
	}
}

func (c *preferenceCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *preferenceCache) RemoveExpired(now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*preferenceCacheEntry)
		if now.After(entry.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *preferenceCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*preferenceCacheEntry)
	delete(c.items, entry.userID)
	c.lru.Remove(elem)
	c.totalBytes -= int64(entry.sizeBytes)
	if c.totalBytes < 0 {
		c.totalBytes = 0
	}
}

func (c *preferenceCache) evictToFitLocked() {
	for c.totalBytes > c.maxBytes && c.lru.Len() > 0 {
		c.removeElement(c.lru.Back())
	}
}

func estimateEntrySizeBytes(userID string, value models.Preferences) int {
	size := len(userID)
	for _, word := range value.TriggerWords {
		// string header + bytes
		size += 16 + len(word)
	}
	// Approximate scalar/object overhead.
	size += 96
	return size
}

func clonePreferences(p models.Preferences) models.Preferences {
	out := p
	if p.TriggerWords != nil {
		out.TriggerWords = make([]string, len(p.TriggerWords))
		copy(out.TriggerWords, p.TriggerWords)
	}
	return out
}
