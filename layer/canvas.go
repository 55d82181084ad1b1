package layer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// Canvas is the drawing surface the renderer paints into. It mirrors the
// small slice of a 2D graphics context the tile layer needs: a uniform
// scale transform, clip querying, image blits at integer offsets and the
// primitives for the debug overlay.
//
// A Canvas is expected to start each frame with an identity transform
// and full opacity.
type Canvas interface {
	// Scale multiplies the current transform by a uniform scale factor.
	// Subsequent coordinates are interpreted in the scaled space.
	Scale(s float64)
	// ClipBounds reports the drawable region in the current user space,
	// after any Scale.
	ClipBounds() image.Rectangle
	// SetOpacity sets the alpha applied to subsequent image blits,
	// clamped to [0, 1].
	SetOpacity(a float64)
	DrawImage(img image.Image, x, y int)
	StrokeRect(r image.Rectangle, c color.Color)
	DrawString(s string, x, y int, c color.Color)
}

// ImageCanvas renders into an RGBA image in software. The destination
// image must have its origin at (0, 0).
type ImageCanvas struct {
	dst     *image.RGBA
	scale   float64
	opacity float64
}

func NewImageCanvas(dst *image.RGBA) *ImageCanvas {
	return &ImageCanvas{dst: dst, scale: 1, opacity: 1}
}

// Image returns the destination image.
func (c *ImageCanvas) Image() *image.RGBA { return c.dst }

func (c *ImageCanvas) Scale(s float64) {
	c.scale *= s
}

func (c *ImageCanvas) SetOpacity(a float64) {
	c.opacity = math.Max(0, math.Min(1, a))
}

func (c *ImageCanvas) ClipBounds() image.Rectangle {
	b := c.dst.Bounds()
	return image.Rect(0, 0,
		int(math.Ceil(float64(b.Dx())/c.scale)),
		int(math.Ceil(float64(b.Dy())/c.scale)))
}

func (c *ImageCanvas) DrawImage(img image.Image, x, y int) {
	var opts *xdraw.Options
	if c.opacity < 1 {
		a := uint8(math.Round(c.opacity * 255))
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: a})}
	}

	sr := img.Bounds()
	if c.scale == 1 {
		xdraw.Copy(c.dst, image.Pt(x, y), img, sr, xdraw.Over, opts)
		return
	}

	m := f64.Aff3{
		c.scale, 0, c.scale * float64(x-sr.Min.X),
		0, c.scale, c.scale * float64(y-sr.Min.Y),
	}
	xdraw.ApproxBiLinear.Transform(c.dst, m, img, sr, xdraw.Over, opts)
}

// StrokeRect draws a 1px outline of r. The rectangle is given in user
// space; the stroke width stays at one device pixel.
func (c *ImageCanvas) StrokeRect(r image.Rectangle, col color.Color) {
	d := c.deviceRect(r)
	u := &image.Uniform{C: col}
	edges := []image.Rectangle{
		image.Rect(d.Min.X, d.Min.Y, d.Max.X, d.Min.Y+1),
		image.Rect(d.Min.X, d.Max.Y-1, d.Max.X, d.Max.Y),
		image.Rect(d.Min.X, d.Min.Y, d.Min.X+1, d.Max.Y),
		image.Rect(d.Max.X-1, d.Min.Y, d.Max.X, d.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(c.dst, e, u, image.Point{}, draw.Over)
	}
}

// DrawString renders s with the builtin 7x13 face. The anchor is given
// in user space; glyphs are not scaled.
func (c *ImageCanvas) DrawString(s string, x, y int, col color.Color) {
	p := c.devicePoint(x, y)
	d := &font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(p.X, p.Y),
	}
	d.DrawString(s)
}

func (c *ImageCanvas) devicePoint(x, y int) image.Point {
	return image.Pt(
		int(math.Round(float64(x)*c.scale)),
		int(math.Round(float64(y)*c.scale)))
}

func (c *ImageCanvas) deviceRect(r image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: c.devicePoint(r.Min.X, r.Min.Y),
		Max: c.devicePoint(r.Max.X, r.Max.Y),
	}
}
