// Package cache holds successful query results keyed by structural keys.
//
// Entries are served without a network call while younger than their stale
// time, marked stale by invalidation, and evicted by Sweep once nobody has been
// subscribed for longer than their gc time.
package cache

import (
	"sync"
	"time"

	"github.com/vietddude/queryplane/internal/query/keys"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 10 * time.Minute
)

// ClassOptions are the freshness thresholds for one key class.
type ClassOptions struct {
	StaleTime time.Duration `yaml:"stale_time"`
	GCTime    time.Duration `yaml:"gc_time"`
}

// Options configures a Cache.
type Options struct {
	Defaults ClassOptions
	// Classes overrides Defaults per key class (first key segment).
	Classes map[string]ClassOptions
	Now     func() time.Time
}

// Entry is a snapshot of one cache slot.
type Entry struct {
	Key         keys.Key
	Value       any
	HasValue    bool
	UpdatedAt   time.Time
	StaleTime   time.Duration
	GCTime      time.Duration
	Subscribers int
	Invalidated bool

	idleSince time.Time
}

// Fresh reports whether the entry can be served without a network call.
func (e Entry) Fresh(now time.Time) bool {
	return e.HasValue && !e.Invalidated && now.Sub(e.UpdatedAt) < e.StaleTime
}

// Stats summarises cache contents.
type Stats struct {
	Entries     int `json:"entries"`
	Fresh       int `json:"fresh"`
	Stale       int `json:"stale"`
	Subscribers int `json:"subscribers"`
}

// Cache is safe for concurrent use.
type Cache struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates a cache. Zero thresholds fall back to the package defaults.
func New(opts Options) *Cache {
	if opts.Defaults.StaleTime <= 0 {
		opts.Defaults.StaleTime = DefaultStaleTime
	}
	if opts.Defaults.GCTime <= 0 {
		opts.Defaults.GCTime = DefaultGCTime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		opts:    opts,
		entries: make(map[string]*Entry),
	}
}

// OptionsFor returns the thresholds that apply to key.
func (c *Cache) OptionsFor(key keys.Key) ClassOptions {
	o := c.opts.Defaults
	if override, ok := c.opts.Classes[key.Class()]; ok {
		if override.StaleTime > 0 {
			o.StaleTime = override.StaleTime
		}
		if override.GCTime > 0 {
			o.GCTime = override.GCTime
		}
	}
	return o
}

// Now returns the cache clock.
func (c *Cache) Now() time.Time { return c.opts.Now() }

// Get returns a snapshot of the entry for key.
func (c *Cache) Get(key keys.Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key.ID()]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Put stores value as the latest successful result for key.
func (c *Cache) Put(key keys.Key, value any) {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key, now)
	e.Value = value
	e.HasValue = true
	e.UpdatedAt = now
	e.Invalidated = false
	if e.Subscribers == 0 {
		e.idleSince = now
	}
}

// Invalidate marks every entry under prefix stale. It returns how many
// entries were touched.
func (c *Cache) Invalidate(prefix keys.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.Key.HasPrefix(prefix) {
			e.Invalidated = true
			n++
		}
	}
	return n
}

// Remove drops every entry under prefix.
func (c *Cache) Remove(prefix keys.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if e.Key.HasPrefix(prefix) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Subscribe registers interest in key, creating its entry on first use.
func (c *Cache) Subscribe(key keys.Key) {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entryLocked(key, now).Subscribers++
}

// Unsubscribe releases interest taken by Subscribe.
func (c *Cache) Unsubscribe(key keys.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.ID()]
	if !ok || e.Subscribers == 0 {
		return
	}
	e.Subscribers--
	if e.Subscribers == 0 {
		e.idleSince = c.opts.Now()
	}
}

// Sweep evicts unsubscribed entries idle for longer than their gc time and
// returns their keys.
func (c *Cache) Sweep() []keys.Key {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []keys.Key
	for id, e := range c.entries {
		if e.Subscribers > 0 {
			continue
		}
		if now.Sub(e.idleSince) > e.GCTime {
			delete(c.entries, id)
			evicted = append(evicted, e.Key)
		}
	}
	return evicted
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a summary of the current entries.
func (c *Cache) Stats() Stats {
	now := c.opts.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.Fresh(now) {
			s.Fresh++
		} else if e.HasValue {
			s.Stale++
		}
		s.Subscribers += e.Subscribers
	}
	return s
}

func (c *Cache) entryLocked(key keys.Key, now time.Time) *Entry {
	id := key.ID()
	if e, ok := c.entries[id]; ok {
		return e
	}
	o := c.OptionsFor(key)
	e := &Entry{
		Key:       key,
		StaleTime: o.StaleTime,
		GCTime:    o.GCTime,
		idleSince: now,
	}
	c.entries[id] = e
	return e
}
