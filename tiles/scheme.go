package tiles

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultTileSize is the tile edge length used by most raster tile
// services.
const DefaultTileSize = 256

// Scheme describes a square web-mercator tile pyramid: its zoom range,
// the tile pixel size and the mapping between geographic positions and
// world pixel coordinates at each level. Zoom grows toward finer detail,
// so pixels-per-degree increases with zoom.
type Scheme struct {
	minZoom  int
	maxZoom  int
	tileSize int
}

func NewScheme(minZoom, maxZoom, tileSize int) *Scheme {
	return &Scheme{minZoom: minZoom, maxZoom: maxZoom, tileSize: tileSize}
}

// OSM returns the scheme used by openstreetmap.org style tile servers.
func OSM() *Scheme {
	return NewScheme(0, 19, DefaultTileSize)
}

func (s *Scheme) MinZoom() int { return s.minZoom }
func (s *Scheme) MaxZoom() int { return s.maxZoom }

// TileSize returns the tile edge length in pixels at the given zoom.
// The size is constant across levels in this scheme.
func (s *Scheme) TileSize(zoom int) int { return s.tileSize }

// PixelsPerDegree returns the number of pixels one degree of longitude
// spans at the given zoom level.
func (s *Scheme) PixelsPerDegree(zoom int) float64 {
	return float64(s.tileSize) * math.Pow(2, float64(zoom)) / 360
}

// GeoToPixel converts a geographic position to world pixel coordinates at
// a zoom level. Fractional zoom levels interpolate smoothly between the
// discrete pyramid levels.
func (s *Scheme) GeoToPixel(p orb.Point, zoom float64) (x, y float64) {
	n := math.Pow(2, zoom)
	latRad := p.Lat() * math.Pi / 180.0
	x = float64(s.tileSize) * n * (p.Lon() + 180) / 360
	y = float64(s.tileSize) * n * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2
	return x, y
}

// PixelToGeo converts world pixel coordinates at a zoom level back to a
// geographic position.
func (s *Scheme) PixelToGeo(x, y float64, zoom float64) orb.Point {
	n := math.Pow(2, zoom)
	world := float64(s.tileSize) * n
	lon := (x/world)*360 - 180
	latRad := math.Pi * (1 - 2*y/world)
	lat := 180 / math.Pi * math.Atan(math.Sinh(latRad))
	return orb.Point{lon, lat}
}

// ClampZoom constrains a zoom level to the scheme's range.
func (s *Scheme) ClampZoom(zoom int) int {
	return max(s.minZoom, min(zoom, s.maxZoom))
}
