package layer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"maplayer/tiles"
)

// TileSource is the tile-factory contract the renderer draws from. It
// must never block: GetTile returns a pending handle for anything not
// yet available. *tiles.Source implements it.
type TileSource interface {
	Scheme() *tiles.Scheme
	TileSize(zoom int) int
	GetTile(x, y, zoom int) *tiles.Handle
	OnTileLoaded(fn func(*tiles.Handle)) (remove func())
	PendingCount() int
}

// Change describes a single configuration mutation, broadcast to
// listeners registered with OnChange.
type Change struct {
	Field    string
	Old, New any
}

// Renderer draws a slippy-map tile layer into a Canvas. For every frame
// it re-derives the zoom level, scale correction and visible tile grid
// from the viewport; the only state carried across frames is the
// configuration and the dirty flag.
//
// Configuration setters must be called from the owning goroutine. The
// dirty flag is atomic because tile-load callbacks set it from worker
// goroutines.
type Renderer struct {
	source          TileSource
	opacity         float64
	drawTileBorders bool

	dirty      atomic.Bool
	listeners  []func(Change)
	removeLoad func()
}

func New(source TileSource, opacity float64) *Renderer {
	r := &Renderer{
		source:  source,
		opacity: clampOpacity(opacity),
	}
	r.removeLoad = source.OnTileLoaded(func(*tiles.Handle) {
		r.dirty.Store(true)
	})
	return r
}

// Close deregisters the renderer's tile-load listener. The renderer must
// not be used afterwards.
func (r *Renderer) Close() {
	if r.removeLoad != nil {
		r.removeLoad()
		r.removeLoad = nil
	}
}

// OnChange registers a listener for configuration changes.
func (r *Renderer) OnChange(fn func(Change)) {
	r.listeners = append(r.listeners, fn)
}

func (r *Renderer) fireChange(field string, oldValue, newValue any) {
	for _, fn := range r.listeners {
		fn(Change{Field: field, Old: oldValue, New: newValue})
	}
}

func (r *Renderer) Opacity() float64 { return r.opacity }

// SetOpacity sets the compositing alpha for tile blits. Unlike the other
// setters it does not mark the layer dirty: hosts pick the new value up
// on their next repaint.
func (r *Renderer) SetOpacity(opacity float64) {
	opacity = clampOpacity(opacity)
	if opacity == r.opacity {
		return
	}
	old := r.opacity
	r.opacity = opacity
	r.fireChange("opacity", old, r.opacity)
}

func (r *Renderer) Source() TileSource { return r.source }

// SetSource swaps the tile source, moving the load-listener registration
// over to the new one.
func (r *Renderer) SetSource(source TileSource) {
	if source == r.source {
		return
	}
	old := r.source
	r.source = source

	if r.removeLoad != nil {
		r.removeLoad()
	}
	r.removeLoad = source.OnTileLoaded(func(*tiles.Handle) {
		r.dirty.Store(true)
	})

	r.fireChange("source", old, r.source)
	r.dirty.Store(true)
}

func (r *Renderer) DrawTileBorders() bool { return r.drawTileBorders }

// SetDrawTileBorders toggles the per-tile debug overlay (border, center
// crosshair and index label).
func (r *Renderer) SetDrawTileBorders(draw bool) {
	if draw == r.drawTileBorders {
		return
	}
	old := r.drawTileBorders
	r.drawTileBorders = draw
	r.fireChange("drawTileBorders", old, r.drawTileBorders)
	r.dirty.Store(true)
}

// Dirty reports whether the layer needs a repaint.
func (r *Renderer) Dirty() bool { return r.dirty.Load() }

func (r *Renderer) MarkDirty()  { r.dirty.Store(true) }
func (r *Renderer) ClearDirty() { r.dirty.Store(false) }

// Render draws the layer for the given view into cv. width and height
// are the pixel size of the drawing target; the view's viewport bounds
// may differ from it, e.g. mid-drag. The canvas must start the frame
// with an identity transform.
func (r *Renderer) Render(cv Canvas, v View, width, height int) {
	if r.opacity < 1 {
		cv.SetOpacity(r.opacity)
	}

	upperLeft := v.PixelToGeo(0, 0)
	lowerRight := v.PixelToGeo(float64(width), float64(height))
	viewport := v.ViewportBounds()

	lonSpan := math.Abs(lowerRight.Lon() - upperLeft.Lon())
	if lonSpan == 0 {
		// collapsed geo span, skip the frame
		return
	}
	targetDegreeWidth := math.Abs(float64(viewport.Dx())) / lonSpan
	if math.IsNaN(targetDegreeWidth) || math.IsInf(targetDegreeWidth, 0) {
		return
	}

	scheme := r.source.Scheme()
	zoom := SelectZoom(scheme, targetDegreeWidth)

	// Snap to the discrete level, then scale the residual away so the
	// tile grid exactly fills the requested footprint.
	scale := targetDegreeWidth / scheme.PixelsPerDegree(zoom)
	cv.Scale(scale)

	size := r.source.TileSize(zoom)

	pX, pY := scheme.GeoToPixel(upperLeft, float64(zoom))
	pX2, pY2 := scheme.GeoToPixel(lowerRight, float64(zoom))
	rng := visibleRange(pX, pY, pX2, pY2, size, scale)

	clip := cv.ClipBounds()
	px, py := int(pX), int(pY)

	for x := 0; x < rng.numWide; x++ {
		for y := 0; y < rng.numHigh; y++ {
			tileX := x + rng.tpx
			tileY := y + rng.tpy
			handle := r.source.GetTile(tileX, tileY, zoom)

			ox := tileX*size - px
			oy := tileY*size - py

			if !clip.Overlaps(image.Rect(ox, oy, ox+size, oy+size)) {
				continue
			}

			if handle.Loaded() {
				cv.DrawImage(handle.Image(), ox, oy)
			}
			if r.drawTileBorders {
				drawTileDebug(cv, tileX, tileY, zoom, ox, oy, size)
			}
		}
	}
}

// drawTileDebug overlays the tile border, a small center crosshair box
// and the tile index label. The label is drawn three times with small
// offsets in black and white so it stays readable over any imagery.
func drawTileDebug(cv Canvas, tileX, tileY, zoom, ox, oy, size int) {
	cv.StrokeRect(image.Rect(ox, oy, ox+size, oy+size), color.Black)
	cv.StrokeRect(image.Rect(ox+size/2-5, oy+size/2-5, ox+size/2+5, oy+size/2+5), color.Black)
	cv.StrokeRect(image.Rect(ox+1, oy+1, ox+1+size, oy+1+size), color.White)

	label := fmt.Sprintf("%d, %d, %d", tileX, tileY, zoom)
	cv.DrawString(label, ox+10, oy+30, color.Black)
	cv.DrawString(label, ox+10+2, oy+30+2, color.Black)
	cv.DrawString(label, ox+10+1, oy+30+1, color.White)
}

func clampOpacity(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
