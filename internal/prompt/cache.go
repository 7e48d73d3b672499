// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import "sync"

// Cache is a concurrency-safe name -> template text map. Entries are only
// removed by Delete or Clear.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the cached text for name.
func (c *Cache) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[name]
	return text, ok
}

// Put stores text under name.
func (c *Cache) Put(name, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = text
}

// Delete removes name and reports whether it was present.
func (c *Cache) Delete(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[name]
	delete(c.entries, name)
	return ok
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
