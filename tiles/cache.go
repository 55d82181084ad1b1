package tiles

import (
	"image"
	"sync"
)

// Cache stores decoded tile imagery keyed by Tile.Key. Implementations
// must be safe for concurrent use; eviction policy is up to the
// implementation.
type Cache interface {
	Get(key string) (image.Image, bool)
	Set(key string, img image.Image)
	Clear()
}

// ImageCache is an unbounded in-memory Cache.
type ImageCache struct {
	mu    sync.RWMutex
	cache map[string]image.Image
}

func NewImageCache() *ImageCache {
	return &ImageCache{cache: make(map[string]image.Image)}
}

func (c *ImageCache) Get(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.cache[key]
	return img, ok
}

func (c *ImageCache) Set(key string, img image.Image) {
	c.mu.Lock()
	c.cache[key] = img
	c.mu.Unlock()
}

func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]image.Image)
	c.mu.Unlock()
}
