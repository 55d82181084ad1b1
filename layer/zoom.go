package layer

import "math"

// ZoomInfo is the projection detail zoom selection needs: the zoom range
// and the per-level pixel density.
type ZoomInfo interface {
	MinZoom() int
	MaxZoom() int
	PixelsPerDegree(zoom int) float64
}

// zoomScan tracks the best zoom level seen so far while walking the
// pyramid from coarse to fine. diff is the signed distance between the
// requested pixel density and the level's native density: positive while
// the level is still too coarse, negative once it overshoots.
type zoomScan struct {
	zoom int
	diff float64
}

// step feeds the next candidate level into the scan and reports whether
// the scan is finished.
func (s *zoomScan) step(zoom int, diff float64) (done bool) {
	switch {
	case diff > s.diff && diff > 0:
		// Moving away on the undershoot side: the previous level was
		// already the closest match.
		return true
	case diff < s.diff && diff < 0:
		// First overshoot that improves on the previous distance wins.
		// On equal magnitude this favours the finer level.
		s.zoom, s.diff = zoom, diff
		return true
	default:
		s.zoom, s.diff = zoom, diff
		return false
	}
}

// SelectZoom picks the zoom level whose native pixels-per-degree is
// closest to targetDegreeWidth, walking levels from MinZoom upward. The
// result is always within [MinZoom, MaxZoom].
func SelectZoom(info ZoomInfo, targetDegreeWidth float64) int {
	scan := zoomScan{
		zoom: info.MinZoom(),
		diff: targetDegreeWidth - info.PixelsPerDegree(info.MinZoom()),
	}
	for z := scan.zoom + 1; z <= info.MaxZoom(); z++ {
		if scan.step(z, targetDegreeWidth-info.PixelsPerDegree(z)) {
			break
		}
	}
	return scan.zoom
}

// tileRange is the grid of tile indices covering a viewport: the index
// of the tile under the top-left corner and the number of columns and
// rows to iterate.
type tileRange struct {
	tpx, tpy         int
	numWide, numHigh int
}

// visibleRange derives the tile grid from the viewport corners in world
// pixels at the selected zoom. Counts are computed in pre-transform tile
// units (the surface is scaled separately), with one extra tile per axis
// so fractional alignment never leaves a gap.
func visibleRange(pX, pY, pX2, pY2 float64, size int, scale float64) tileRange {
	px, py := int(pX), int(pY)
	pWidth, pHeight := int(pX2-pX), int(pY2-pY)

	return tileRange{
		tpx:     int(math.Floor(float64(px) / float64(size))),
		tpy:     int(math.Floor(float64(py) / float64(size))),
		numWide: int(math.Ceil(float64(pWidth)/float64(size)/scale)) + 1,
		numHigh: int(math.Ceil(float64(pHeight)/float64(size)/scale)) + 1,
	}
}
