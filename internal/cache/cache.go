// Package cache provides caching for rendered figures and generated schemes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/scimaplab/server/pkg/scheme"
)

// Config contains cache configuration.
type Config struct {
	DisplayCacheSizeMB int
	DisplayTTL         time.Duration
	SchemeCacheSize    int
}

// Manager manages figure and scheme caches.
type Manager struct {
	displayCache *bigcache.BigCache
	schemeCache  *lru.Cache[string, *scheme.Collection]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	// Configure figure cache
	displayCacheConfig := bigcache.Config{
		Shards:             16,
		LifeWindow:         cfg.DisplayTTL,
		CleanWindow:        cfg.DisplayTTL / 2,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       128 * 1024, // figures grow with the number of rows
		HardMaxCacheSize:   cfg.DisplayCacheSizeMB,
		Verbose:            false,
	}

	displayCache, err := bigcache.New(context.Background(), displayCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create display cache: %w", err)
	}

	schemeCache, err := lru.New[string, *scheme.Collection](cfg.SchemeCacheSize)
	if err != nil {
		displayCache.Close()
		return nil, fmt.Errorf("failed to create scheme cache: %w", err)
	}

	return &Manager{
		displayCache: displayCache,
		schemeCache:  schemeCache,
	}, nil
}

// GetDisplay retrieves a rendered figure from cache.
func (m *Manager) GetDisplay(key string) ([]byte, bool) {
	data, err := m.displayCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetDisplay stores a rendered figure in cache.
func (m *Manager) SetDisplay(key string, data []byte) error {
	return m.displayCache.Set(key, data)
}

// DeleteDisplay drops a rendered figure. Missing keys are ignored.
func (m *Manager) DeleteDisplay(key string) {
	if err := m.displayCache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.Printf("[Cache] failed to delete %s: %v", key, err)
	}
}

// GetScheme retrieves a generated collection from cache.
func (m *Manager) GetScheme(key string) (*scheme.Collection, bool) {
	return m.schemeCache.Get(key)
}

// SetScheme stores a generated collection in cache.
func (m *Manager) SetScheme(key string, c *scheme.Collection) {
	m.schemeCache.Add(key, c)
}

// SchemeKey generates a cache key for a generated scheme.
func SchemeKey(base string, nRotations int, name string) string {
	return fmt.Sprintf("scheme:%s/%d:%s", base, nRotations, name)
}

// DisplayKey generates a cache key for the figure of one registration of a
// scheme. Replacing a scheme bumps its generation, so figures rendered for an
// earlier registration are never served again.
func DisplayKey(schemeName string, generation uint64) string {
	return fmt.Sprintf("display:%s#%d", schemeName, generation)
}

// PreviewKey generates a cache key for an unregistered hue-rotation preview.
func PreviewKey(colormapName string, nRotations int) string {
	return fmt.Sprintf("preview:%s/%d", colormapName, nRotations)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"display_cache_len": m.displayCache.Len(),
		"display_cache_cap": m.displayCache.Capacity(),
		"scheme_cache_len":  m.schemeCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.displayCache.Close()
}
