package cache

import (
	"fmt"
	"sync"
	"time"

	"jukebox/pkg/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return now.After(e.Expiration)
}

// MemoryCache implements a simple in-memory cache with a background sweeper.
// Call Close to stop the sweeper.
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go cache.cleanupExpired(time.Minute * 5)

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: c.now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired(c.now()) {
		return nil, false
	}

	return entry.Value, true
}

// Close stops the background sweeper (idempotent)
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// purgeExpired removes every expired entry
func (c *MemoryCache) purgeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, entry := range c.items {
		if entry.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

func (c *MemoryCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stop:
			return
		}
	}
}

// TrackCache memoizes extracted tracks by file identity, so reopening an
// unchanged library does not reread every tag.
type TrackCache struct {
	*MemoryCache
}

// NewTrackCache creates a new track cache
func NewTrackCache(ttl time.Duration) *TrackCache {
	return &TrackCache{
		MemoryCache: NewMemoryCache(ttl),
	}
}

// TrackKey identifies one version of a file on disk
func TrackKey(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", path, size, modTime.UnixNano())
}

// SetTrack caches an extracted track
func (tc *TrackCache) SetTrack(key string, track models.Track) {
	tc.Set(key, track)
}

// GetTrack retrieves a cached track
func (tc *TrackCache) GetTrack(key string) (models.Track, bool) {
	value, exists := tc.Get(key)
	if !exists {
		return models.Track{}, false
	}

	track, ok := value.(models.Track)
	return track, ok
}
