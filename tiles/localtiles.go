package tiles

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LocalTileProvider renders labeled placeholder tiles without touching
// the network. It serves as a fallback layer while real tiles load and
// as deterministic imagery in tests.
type LocalTileProvider struct {
	size int
}

func NewLocalTileProvider() *LocalTileProvider {
	return &LocalTileProvider{size: DefaultTileSize}
}

func (p *LocalTileProvider) GetTile(tile Tile) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, p.size, p.size))

	bgColor := color.RGBA{200, 220, 255, 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{bgColor}, image.Point{}, draw.Src)

	p.drawLabel(img, tile)

	borderColor := color.RGBA{100, 100, 100, 255}
	borders := []image.Rectangle{
		image.Rect(0, 0, p.size, 1),
		image.Rect(0, p.size-1, p.size, p.size),
		image.Rect(0, 0, 1, p.size),
		image.Rect(p.size-1, 0, p.size, p.size),
	}
	for _, rect := range borders {
		draw.Draw(img, rect, &image.Uniform{borderColor}, image.Point{}, draw.Src)
	}

	return img, nil
}

func (p *LocalTileProvider) drawLabel(img *image.RGBA, tile Tile) {
	text := tile.Key()

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	textWidth := d.MeasureString(text).Round()
	textHeight := face.Metrics().Height.Round()

	padding := 10
	cy := p.size / 2
	textBgRect := image.Rect(
		(p.size-textWidth)/2-padding,
		cy-textHeight/2-padding,
		(p.size+textWidth)/2+padding,
		cy+textHeight/2+padding,
	)
	textBgColor := color.RGBA{255, 255, 255, 220}
	draw.Draw(img, textBgRect, &image.Uniform{textBgColor}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I((p.size - textWidth) / 2),
		Y: fixed.I(cy + textHeight/2),
	}
	d.DrawString(text)
}
