package layer

import (
	"image"
	"image/color"
	"testing"
)

func solidTile(size int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestImageCanvasClipBounds(t *testing.T) {
	cv := NewImageCanvas(image.NewRGBA(image.Rect(0, 0, 800, 600)))

	if got := cv.ClipBounds(); got != image.Rect(0, 0, 800, 600) {
		t.Errorf("ClipBounds at identity = %v", got)
	}

	cv.Scale(0.8)
	want := image.Rect(0, 0, 1000, 750)
	if got := cv.ClipBounds(); got != want {
		t.Errorf("ClipBounds at scale 0.8 = %v, want %v", got, want)
	}
}

func TestImageCanvasDrawImageUnscaled(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
	cv := NewImageCanvas(dst)
	red := color.RGBA{R: 255, A: 255}

	cv.DrawImage(solidTile(16, red), 10, 20)

	if got := dst.RGBAAt(10, 20); got != red {
		t.Errorf("pixel inside blit = %v, want %v", got, red)
	}
	if got := dst.RGBAAt(25, 35); got != red {
		t.Errorf("pixel at blit corner = %v, want %v", got, red)
	}
	if got := dst.RGBAAt(9, 20); got.A != 0 {
		t.Errorf("pixel left of blit = %v, want transparent", got)
	}
}

func TestImageCanvasDrawImageScaled(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 256, 256))
	cv := NewImageCanvas(dst)
	cv.Scale(0.5)
	red := color.RGBA{R: 255, A: 255}

	// user-space (100, 0), 256px tile -> device [50, 178) x [0, 128)
	cv.DrawImage(solidTile(256, red), 100, 0)

	if got := dst.RGBAAt(60, 10); got != red {
		t.Errorf("pixel inside scaled blit = %v, want %v", got, red)
	}
	if got := dst.RGBAAt(40, 10); got.A != 0 {
		t.Errorf("pixel left of scaled blit = %v, want transparent", got)
	}
	if got := dst.RGBAAt(60, 140); got.A != 0 {
		t.Errorf("pixel below scaled blit = %v, want transparent", got)
	}
}

func TestImageCanvasOpacity(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 32, 32))
	cv := NewImageCanvas(dst)
	cv.SetOpacity(0.5)

	cv.DrawImage(solidTile(32, color.RGBA{R: 255, A: 255}), 0, 0)

	got := dst.RGBAAt(16, 16)
	if got.A < 120 || got.A > 135 {
		t.Errorf("alpha after half-opacity blit = %d, want ~128", got.A)
	}
	if got.R < 120 || got.R > 135 {
		t.Errorf("red after half-opacity blit = %d, want ~128", got.R)
	}
}

func TestImageCanvasStrokeRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 64, 64))
	cv := NewImageCanvas(dst)

	cv.StrokeRect(image.Rect(10, 10, 20, 20), color.White)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, p := range []image.Point{{10, 10}, {19, 10}, {10, 19}, {19, 19}, {15, 10}, {10, 15}} {
		if got := dst.RGBAAt(p.X, p.Y); got != white {
			t.Errorf("edge pixel %v = %v, want white", p, got)
		}
	}
	if got := dst.RGBAAt(15, 15); got.A != 0 {
		t.Errorf("interior pixel = %v, want untouched", got)
	}
}

func TestImageCanvasDrawString(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 128, 32))
	cv := NewImageCanvas(dst)

	cv.DrawString("3, 4, 7", 10, 20, color.White)

	var lit int
	for y := 0; y < 32; y++ {
		for x := 0; x < 128; x++ {
			if dst.RGBAAt(x, y).A != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("DrawString painted no pixels")
	}
}
