package tiles

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Tile identifies a single map tile by column, row and zoom level.
type Tile struct {
	X, Y, Zoom int
}

// Key returns a unique string key for the tile, usable as a cache key.
func (t Tile) Key() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

func (t Tile) String() string { return t.Key() }

// Valid reports whether the tile indices lie inside the world grid for
// the tile's zoom level.
func (t Tile) Valid() bool {
	if t.Zoom < 0 {
		return false
	}
	n := 1 << uint(t.Zoom)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// At returns the tile containing the given position at zoom.
func At(p orb.Point, zoom int) Tile {
	latRad := p.Lat() * math.Pi / 180
	n := math.Pow(2, float64(zoom))
	x := int((p.Lon() + 180.0) / 360.0 * n)
	y := int((1.0 - math.Log(math.Tan(latRad)+(1/math.Cos(latRad)))/math.Pi) / 2.0 * n)
	return Tile{X: x, Y: y, Zoom: zoom}
}

// Bound returns the geographic bounds covered by the tile.
func (t Tile) Bound() orb.Bound {
	n := math.Pow(2, float64(t.Zoom))
	left := float64(t.X)/n*360.0 - 180.0
	right := float64(t.X+1)/n*360.0 - 180.0
	top := tileEdgeLat(float64(t.Y), n)
	bottom := tileEdgeLat(float64(t.Y+1), n)
	return orb.Bound{
		Min: orb.Point{left, bottom},
		Max: orb.Point{right, top},
	}
}

func tileEdgeLat(y, n float64) float64 {
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return latRad * 180.0 / math.Pi
}

// Clamp constrains the tile indices to the valid range for its zoom level.
func (t Tile) Clamp() Tile {
	maxTile := int(math.Pow(2, float64(t.Zoom))) - 1
	t.X = max(0, min(t.X, maxTile))
	t.Y = max(0, min(t.Y, maxTile))
	return t
}
