package tiles

import (
	"fmt"
	"image"
	"sync"
)

// CombinedProvider serves tiles from a primary provider, handing out
// fallback imagery while the primary is unavailable. When a fallback
// tile was served, the primary fetch keeps running in the background and
// the upgraded image is announced through the upgrade callback.
type CombinedProvider struct {
	primary  Provider
	fallback Provider

	mu        sync.RWMutex
	loading   map[string]bool
	upgraded  map[string]image.Image
	onUpgrade func(Tile, image.Image)
}

func NewCombinedProvider(primary, fallback Provider) *CombinedProvider {
	return &CombinedProvider{
		primary:  primary,
		fallback: fallback,
		loading:  make(map[string]bool),
		upgraded: make(map[string]image.Image),
	}
}

// SetOnUpgrade registers the callback invoked when a primary tile
// arrives after its fallback was already served. Must be set before the
// provider is used.
func (p *CombinedProvider) SetOnUpgrade(fn func(Tile, image.Image)) {
	p.onUpgrade = fn
}

func (p *CombinedProvider) GetTile(tile Tile) (image.Image, error) {
	key := tile.Key()

	p.mu.RLock()
	img, ok := p.upgraded[key]
	p.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := p.primary.GetTile(tile)
	if err == nil {
		return img, nil
	}

	fallbackImg, fbErr := p.fallback.GetTile(tile)
	if fbErr != nil {
		return nil, fmt.Errorf("both primary and fallback providers failed: %w", fbErr)
	}

	p.mu.Lock()
	alreadyLoading := p.loading[key]
	if !alreadyLoading {
		p.loading[key] = true
	}
	p.mu.Unlock()

	if !alreadyLoading {
		go p.upgrade(tile, key)
	}

	return fallbackImg, nil
}

func (p *CombinedProvider) upgrade(tile Tile, key string) {
	if img, err := p.primary.GetTile(tile); err == nil {
		p.mu.Lock()
		p.upgraded[key] = img
		p.mu.Unlock()

		if p.onUpgrade != nil {
			p.onUpgrade(tile, img)
		}
	}

	p.mu.Lock()
	delete(p.loading, key)
	p.mu.Unlock()
}
