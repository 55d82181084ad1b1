// Package mapview hosts the tile layer in an interactive Gio widget
// with panning and smooth scroll zoom.
package mapview

import (
	"image"
	"math"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"github.com/paulmach/orb"

	"maplayer/layer"
	"maplayer/tiles"
)

// zoomStep is the fractional zoom change per scroll notch. Intermediate
// zooms render through the layer's scale correction, so zooming stays
// smooth between tile pyramid levels.
const zoomStep = 0.25

type MapView struct {
	Layer  *layer.Renderer
	Center orb.Point
	Zoom   float64

	size  image.Point
	frame *image.RGBA
	moved bool

	clickPos    f32.Point
	dragging    bool
	lastDragPos f32.Point
	released    bool
}

func New(l *layer.Renderer, center orb.Point, zoom float64) *MapView {
	return &MapView{
		Layer:  l,
		Center: center,
		Zoom:   zoom,
		moved:  true,
	}
}

func (mv *MapView) scheme() *tiles.Scheme {
	return mv.Layer.Source().Scheme()
}

func (mv *MapView) Layout(gtx layout.Context) layout.Dimensions {
	tag := mv

	// process events
	dragDelta := f32.Point{}
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:       tag,
			Kinds:        pointer.Scroll | pointer.Drag | pointer.Press | pointer.Release | pointer.Cancel,
			ScrollBounds: image.Rect(-10, -10, 10, 10),
		})
		if !ok {
			break
		}

		x, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch x.Kind {
		case pointer.Press:
			mv.clickPos = x.Position
			mv.dragging = true
		case pointer.Scroll:
			if x.Scroll.Y < 0 {
				mv.zoomAround(x.Position, zoomStep)
			} else if x.Scroll.Y > 0 {
				mv.zoomAround(x.Position, -zoomStep)
			}
		case pointer.Drag:
			dragDelta = x.Position.Sub(mv.clickPos)
		case pointer.Release, pointer.Cancel:
			mv.dragging = false
			mv.released = true
		}
	}

	if mv.dragging {
		if mv.released {
			mv.lastDragPos = dragDelta
			mv.released = false
		}
		if dragDelta != mv.lastDragPos {
			mv.pan(
				float64(dragDelta.X-mv.lastDragPos.X),
				float64(dragDelta.Y-mv.lastDragPos.Y))
			mv.lastDragPos = dragDelta
		}
	}

	if mv.size != gtx.Constraints.Max {
		mv.size = gtx.Constraints.Max
		mv.moved = true
	}

	defer clip.Rect{Max: gtx.Constraints.Max}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)

	mv.renderFrame()

	if mv.frame != nil {
		paint.NewImageOp(mv.frame).Add(gtx.Ops)
		paint.PaintOp{}.Add(gtx.Ops)
	}

	return layout.Dimensions{Size: mv.size}
}

// pan shifts the center by a screen-pixel delta.
func (mv *MapView) pan(dx, dy float64) {
	s := mv.scheme()
	wx, wy := s.GeoToPixel(mv.Center, mv.Zoom)
	mv.Center = s.PixelToGeo(wx-dx, wy-dy, mv.Zoom)
	mv.moved = true
}

// zoomAround changes the zoom while keeping the map position under the
// pointer fixed.
func (mv *MapView) zoomAround(pos f32.Point, delta float64) {
	s := mv.scheme()

	offX := float64(pos.X) - float64(mv.size.X)/2
	offY := float64(pos.Y) - float64(mv.size.Y)/2

	wx, wy := s.GeoToPixel(mv.Center, mv.Zoom)
	mouseX, mouseY := wx+offX, wy+offY

	oldZoom := mv.Zoom
	mv.Zoom = math.Max(float64(s.MinZoom()), math.Min(mv.Zoom+delta, float64(s.MaxZoom())))
	if mv.Zoom == oldZoom {
		return
	}

	factor := math.Pow(2, mv.Zoom-oldZoom)
	mv.Center = s.PixelToGeo(mouseX*factor-offX, mouseY*factor-offY, mv.Zoom)
	mv.moved = true
}

// renderFrame software-renders the layer into a fresh frame when the
// view moved, the layer is dirty or the widget was resized. A fresh
// image per render keeps Gio's image-op caching from showing stale
// pixels.
func (mv *MapView) renderFrame() {
	if mv.size.X <= 0 || mv.size.Y <= 0 {
		return
	}
	if mv.frame != nil && !mv.moved && !mv.Layer.Dirty() {
		return
	}

	frame := image.NewRGBA(image.Rect(0, 0, mv.size.X, mv.size.Y))
	view := &layer.CenteredView{
		Scheme: mv.scheme(),
		Center: mv.Center,
		Zoom:   mv.Zoom,
		Width:  mv.size.X,
		Height: mv.size.Y,
	}

	mv.Layer.ClearDirty()
	mv.Layer.Render(layer.NewImageCanvas(frame), view, mv.size.X, mv.size.Y)

	mv.frame = frame
	mv.moved = false
}
