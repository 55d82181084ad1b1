package tiles

import "image"

// Provider fetches or builds tile imagery synchronously. Implementations
// are called from worker goroutines and must be safe for concurrent use.
type Provider interface {
	GetTile(tile Tile) (image.Image, error)
}
