// Package assets resolves DRM files across the configured search paths and
// caches their decompressed bytes.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/source"
)

// Manager loads DRM files from a list of sources.
type Manager struct {
	sources []*source.Dir
	cache   *Cache
	mu      sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddSource adds a file or directory to the manager.
// Sources are searched in reverse order (last added = highest priority).
// Cached files the new source shadows are dropped.
func (m *Manager) AddSource(path string) error {
	src, err := source.Open(path)
	if err != nil {
		return fmt.Errorf("opening source %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, src)
	for _, name := range src.List() {
		m.cache.Delete(name)
	}

	return nil
}

// Sources returns the roots of all sources, highest priority first.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roots := make([]string, 0, len(m.sources))
	for i := len(m.sources) - 1; i >= 0; i-- {
		roots = append(roots, m.sources[i].Root())
	}
	return roots
}

// CacheStats returns the cache hit and miss counts since the last Close.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// List returns the names visible through all sources, highest priority
// source first, without duplicates.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for i := len(m.sources) - 1; i >= 0; i-- {
		for _, name := range m.sources[i].List() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Load loads a file from the sources.
func (m *Manager) Load(name string) (*source.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Check cache first
	if f, ok := m.cache.Get(name); ok {
		return f, nil
	}

	// Search sources in reverse order
	for i := len(m.sources) - 1; i >= 0; i-- {
		f, err := m.sources[i].Read(name)
		if err == nil {
			m.cache.Set(name, f)
			return f, nil
		}
		if !errors.Is(err, source.ErrNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", source.ErrNotFound, name)
}

// Archive loads name and parses a private copy of it.
func (m *Manager) Archive(name string, opts drm.Options) (*drm.Archive, error) {
	f, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	return f.Archive(opts)
}

// Close drops all sources and cached files.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = nil
	m.cache.Clear()
}

// Cache is a simple in-memory cache for loaded files, keyed by the
// normalized file name.
type Cache struct {
	data map[string]*source.File
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*source.File),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(name string) (*source.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.data[source.Key(name)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return f, ok
}

// Set stores an item in cache.
func (c *Cache) Set(name string, f *source.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[source.Key(name)] = f
}

// Delete removes one item from cache.
func (c *Cache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, source.Key(name))
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*source.File)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
