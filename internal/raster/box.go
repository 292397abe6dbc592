package raster

import (
	"fmt"
	"image"
	"image/color"
)

// BoundingBox is an axis-aligned square sub-region.
type BoundingBox struct {
	X    int
	Y    int
	Size int
}

// Valid reports whether the box has a positive side length.
func (b BoundingBox) Valid() bool {
	return b.Size > 0
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d,%d)", b.X, b.Y, b.Size)
}

// PxColor is an opaque RGB sentinel.
type PxColor struct {
	R, G, B uint8
}

var (
	// SeaColor marks the top-left edge of the rendered map.
	SeaColor = PxColor{R: 75, G: 111, B: 120}
	// VoidColor marks the bottom-right edge of the rendered map.
	VoidColor = PxColor{R: 5, G: 3, B: 4}
)

// NRGBA returns the sentinel as a fully opaque color.
func (c PxColor) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// rgbAt returns the straight (non-premultiplied) RGB of a pixel. Points
// outside the image report ok=false.
func rgbAt(img image.Image, x, y int) (PxColor, bool) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return PxColor{}, false
	}
	switch src := img.(type) {
	case *image.NRGBA:
		i := src.PixOffset(x, y)
		return PxColor{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]}, true
	case *image.RGBA:
		i := src.PixOffset(x, y)
		if src.Pix[i+3] == 0xff {
			return PxColor{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]}, true
		}
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return PxColor{R: c.R, G: c.G, B: c.B}, true
}

// matches reports whether the pixel at (x, y) equals c exactly.
func matches(img image.Image, x, y int, c PxColor) bool {
	px, ok := rgbAt(img, x, y)
	return ok && px == c
}

// alphaAt returns the alpha of a pixel, zero outside the image.
func alphaAt(img image.Image, x, y int) uint8 {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return 0
	}
	switch src := img.(type) {
	case *image.NRGBA:
		return src.Pix[src.PixOffset(x, y)+3]
	case *image.RGBA:
		return src.Pix[src.PixOffset(x, y)+3]
	case *image.Alpha:
		return src.Pix[src.PixOffset(x, y)]
	}
	_, _, _, a := img.At(x, y).RGBA()
	if a == 0 {
		return 0
	}
	return uint8(max(a>>8, 1))
}
