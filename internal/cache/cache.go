// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// DefaultCleanupInterval is how often expired entries are swept.
const DefaultCleanupInterval = time.Minute

// entry is a cached value with its expiration and insertion position.
type entry[V any] struct {
	value     V
	expiresAt time.Time
	elem      *list.Element
}

// TTL is a thread-safe in-memory cache with per-entry expiration and an
// optional capacity bound. When the bound is reached the oldest inserted
// entry is evicted first.
//
// Writes are last-writer-wins: a Set on an existing key replaces the value
// and restarts its TTL.
type TTL[V any] struct {
	mu       sync.RWMutex
	entries  map[string]*entry[V]
	order    *list.List
	ttl      time.Duration
	capacity int
	now      func() time.Time

	stats Stats

	stop     chan struct{}
	stopOnce sync.Once
}

// Stats tracks cache performance counters.
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// Options configures a TTL cache.
type Options struct {
	// TTL is the default lifetime of an entry.
	TTL time.Duration

	// Capacity bounds the number of entries. Zero means unbounded.
	Capacity int

	// CleanupInterval controls the background sweep. Zero uses
	// DefaultCleanupInterval; a negative value disables the sweep.
	CleanupInterval time.Duration

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// New creates a TTL cache and starts its background sweep.
// Call Close to stop the sweep goroutine.
//
//	profiles := cache.New[*Snapshot](cache.Options{TTL: 90 * time.Second})
//	defer profiles.Close()
func New[V any](opts Options) *TTL[V] {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &TTL[V]{
		entries:  make(map[string]*entry[V]),
		order:    list.New(),
		ttl:      opts.TTL,
		capacity: opts.Capacity,
		now:      opts.Clock,
		stop:     make(chan struct{}),
	}
	c.stats.LastCleanup = c.now()

	interval := opts.CleanupInterval
	if interval == 0 {
		interval = DefaultCleanupInterval
	}
	if interval > 0 {
		go c.cleanupLoop(interval)
	}
	return c
}

// Get returns the value stored under key if it exists and has not expired.
// Expired entries are removed and counted as a miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return zero, false
	}

	if !c.now().Before(e.expiresAt) {
		removed := false
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if cur, still := c.entries[key]; still && cur == e {
			c.removeLocked(key, e)
			removed = true
		}
		c.mu.Unlock()
		c.recordMiss()
		if removed {
			c.recordEvictions(1)
		}
		return zero, false
	}

	c.recordHit()
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with a custom TTL.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	evicted := int64(0)
	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}
	for c.capacity > 0 && len(c.entries) >= c.capacity {
		front := c.order.Front()
		if front == nil {
			break
		}
		oldest, _ := front.Value.(string)
		c.removeLocked(oldest, c.entries[oldest])
		evicted++
	}
	e := &entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	e.elem = c.order.PushBack(key)
	c.entries[key] = e
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.TotalKeys = total
	c.stats.Evictions += evicted
	c.stats.mu.Unlock()
}

// Delete removes key. It is a no-op for missing keys.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.removeLocked(key, e)
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	if ok {
		c.recordEvictions(1)
	}
	c.stats.mu.Lock()
	c.stats.TotalKeys = total
	c.stats.mu.Unlock()
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	n := int64(len(c.entries))
	c.entries = make(map[string]*entry[V])
	c.order.Init()
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += n
	c.stats.TotalKeys = 0
	c.stats.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the counters.
func (c *TTL[V]) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the hit rate as a percentage.
func (c *TTL[V]) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Close stops the background sweep. The cache stays usable.
func (c *TTL[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTL[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes all expired entries.
func (c *TTL[V]) cleanup() {
	now := c.now()
	c.mu.Lock()
	evictions := int64(0)
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.removeLocked(key, e)
			evictions++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = total
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
}

// removeLocked deletes key; c.mu must be held for writing.
func (c *TTL[V]) removeLocked(key string, e *entry[V]) {
	if e != nil && e.elem != nil {
		c.order.Remove(e.elem)
	}
	delete(c.entries, key)
}

func (c *TTL[V]) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *TTL[V]) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *TTL[V]) recordEvictions(n int64) {
	c.stats.mu.Lock()
	c.stats.Evictions += n
	c.stats.mu.Unlock()
}

// GenerateKey creates a compact cache key from a namespace and parameters.
// params is serialized with go-json, so struct field order determines the
// key; map keys are sorted by the encoder.
func GenerateKey(namespace string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", namespace, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", namespace, hash[:16])
}
