package layer

import (
	"image"
	"math"

	"github.com/paulmach/orb"

	"maplayer/tiles"
)

// View exposes the viewport the renderer draws: its pixel bounds and the
// pixel to geographic conversion for the current map state.
type View interface {
	ViewportBounds() image.Rectangle
	PixelToGeo(x, y float64) orb.Point
}

// CenteredView is a View fixed on a center position at a fractional zoom
// level. The fractional part is what exercises the renderer's sub-level
// scale correction.
type CenteredView struct {
	Scheme *tiles.Scheme
	Center orb.Point
	Zoom   float64
	Width  int
	Height int
}

func (v *CenteredView) ViewportBounds() image.Rectangle {
	return image.Rect(0, 0, v.Width, v.Height)
}

func (v *CenteredView) PixelToGeo(x, y float64) orb.Point {
	cx, cy := v.Scheme.GeoToPixel(v.Center, v.Zoom)
	wx := cx + x - float64(v.Width)/2
	wy := cy + y - float64(v.Height)/2
	return v.Scheme.PixelToGeo(wx, wy, v.Zoom)
}

// NewBoundsView builds a view whose longitude span exactly fills the
// requested pixel width. The zoom is continuous; the renderer snaps it
// to a discrete level and scales the difference away.
func NewBoundsView(scheme *tiles.Scheme, b orb.Bound, width, height int) *CenteredView {
	lonSpan := b.Right() - b.Left()

	zoom := float64(scheme.MinZoom())
	if lonSpan > 0 && width > 0 {
		zoom = math.Log2(float64(width) * 360 / (lonSpan * float64(scheme.TileSize(0))))
	}

	// Center through world pixels so the mercator latitude midpoint is
	// exact.
	x1, y1 := scheme.GeoToPixel(orb.Point{b.Left(), b.Top()}, zoom)
	x2, y2 := scheme.GeoToPixel(orb.Point{b.Right(), b.Bottom()}, zoom)
	center := scheme.PixelToGeo((x1+x2)/2, (y1+y2)/2, zoom)

	return &CenteredView{
		Scheme: scheme,
		Center: center,
		Zoom:   zoom,
		Width:  width,
		Height: height,
	}
}
