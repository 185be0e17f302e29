package client

import (
	"maps"
	"sync"
	"time"

	"learnhub.io/notifier/internal/domain"
)

// Cache is the client's local view of the inbox. The unread count always
// equals the number of unread entries it holds and never goes negative.
//
// Read state set locally is optimistic. If the server rejects the change,
// the entry stays read until the next Replace brings back server truth.
type Cache struct {
	mu      sync.RWMutex
	entries []domain.Notification
	index   map[string]int
	unread  int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{index: make(map[string]int)}
}

// Replace discards local state in favor of a full server listing.
func (c *Cache) Replace(list []domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make([]domain.Notification, 0, len(list))
	c.index = make(map[string]int, len(list))
	c.unread = 0
	for _, n := range list {
		if _, dup := c.index[n.ID]; dup {
			continue
		}
		c.index[n.ID] = len(c.entries)
		c.entries = append(c.entries, clone(n))
		if !n.Read {
			c.unread++
		}
	}
}

// Merge inserts a pushed notification at the front unless its id is already
// cached. A push never overrides local read state. It reports whether the
// entry was new.
func (c *Cache) Merge(n domain.Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[n.ID]; ok {
		return false
	}
	n = clone(n)
	c.entries = append([]domain.Notification{n}, c.entries...)
	c.reindexLocked()
	if !n.Read {
		c.unread++
	}
	return true
}

// MarkRead flips one entry to read. It reports whether anything changed.
func (c *Cache) MarkRead(id string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok || c.entries[i].Read {
		return false
	}
	c.entries[i].Read = true
	c.entries[i].ReadAt = &at
	if c.unread > 0 {
		c.unread--
	}
	return true
}

// MarkAllRead flips every entry to read and returns how many changed.
func (c *Cache) MarkAllRead(at time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	for i := range c.entries {
		if !c.entries[i].Read {
			c.entries[i].Read = true
			readAt := at
			c.entries[i].ReadAt = &readAt
			changed++
		}
	}
	c.unread = 0
	return changed
}

// Snapshot returns a copy of the entries, newest first, and the unread count.
func (c *Cache) Snapshot() ([]domain.Notification, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Notification, len(c.entries))
	for i, n := range c.entries {
		out[i] = clone(n)
	}
	return out, c.unread
}

// UnreadCount returns the unread count.
func (c *Cache) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

func (c *Cache) reindexLocked() {
	for i, n := range c.entries {
		c.index[n.ID] = i
	}
}

func clone(n domain.Notification) domain.Notification {
	n.Data = maps.Clone(n.Data)
	if n.ReadAt != nil {
		at := *n.ReadAt
		n.ReadAt = &at
	}
	return n
}
