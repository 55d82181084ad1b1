package layer

import (
	"context"
	"image"

	"maplayer/tiles"
)

// Snapshot renders the layer into a new RGBA image, re-rendering on tile
// loads until no fetch is in flight or ctx expires. On expiry the
// partial render is returned together with the context error; tiles
// still pending are simply absent from it.
func Snapshot(ctx context.Context, r *Renderer, v View, width, height int) (*image.RGBA, error) {
	loaded := make(chan struct{}, 1)
	remove := r.Source().OnTileLoaded(func(*tiles.Handle) {
		select {
		case loaded <- struct{}{}:
		default:
		}
	})
	defer remove()

	for {
		// Clear before rendering: a tile completing mid-frame re-marks the
		// layer dirty and forces another pass instead of being lost.
		r.ClearDirty()
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		r.Render(NewImageCanvas(img), v, width, height)

		if r.Source().PendingCount() == 0 && !r.Dirty() {
			return img, nil
		}

		select {
		case <-ctx.Done():
			return img, ctx.Err()
		case <-loaded:
		}
	}
}
