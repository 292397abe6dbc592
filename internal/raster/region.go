package raster

import (
	"fmt"
	"image"

	"cartolapse/internal/services"
)

// ErrRegionNotFound is returned when a sentinel color never appears on the
// diagonal walk. It matches services.ErrRegionNotFound.
var ErrRegionNotFound = services.ErrRegionNotFound

// DetectRegion finds the session-wide map region on a reference screenshot.
//
// The top-left corner comes from walking the main diagonal from the top-left
// until the sea color matches, then extending left and up while it still
// matches. The bottom-right corner comes from walking the diagonal inward from
// the bottom-right until the void color matches, then extending right and down.
// The result is the square of side max(width, height) of that span, grown by
// padding on every side. It is not clamped to the raster.
func DetectRegion(img image.Image, padding int) (BoundingBox, error) {
	b := img.Bounds()
	if b.Empty() {
		return BoundingBox{}, services.Wrap(ErrRegionNotFound, "raster", "detect region", "empty raster", nil)
	}

	left, top, ok := diagonalFromTopLeft(img, SeaColor)
	if !ok {
		return BoundingBox{}, services.Wrap(ErrRegionNotFound, "raster", "detect region",
			fmt.Sprintf("sea color %v not on diagonal", SeaColor), nil)
	}
	for matches(img, left-1, top, SeaColor) {
		left--
	}
	for matches(img, left, top-1, SeaColor) {
		top--
	}

	right, bottom, ok := diagonalFromBottomRight(img, VoidColor)
	if !ok {
		return BoundingBox{}, services.Wrap(ErrRegionNotFound, "raster", "detect region",
			fmt.Sprintf("void color %v not on diagonal", VoidColor), nil)
	}
	for matches(img, right+1, bottom, VoidColor) {
		right++
	}
	for matches(img, right, bottom+1, VoidColor) {
		bottom++
	}

	size := max(right-left, bottom-top) + 2*padding
	if size <= 0 {
		return BoundingBox{}, services.Wrap(ErrRegionNotFound, "raster", "detect region",
			fmt.Sprintf("degenerate span (%d,%d)-(%d,%d)", left, top, right, bottom), nil)
	}
	return BoundingBox{X: left - padding, Y: top - padding, Size: size}, nil
}

// ValidScreenshot reports whether the sea color appears on the main diagonal.
// A screenshot without it was captured before the map finished rendering.
func ValidScreenshot(img image.Image) bool {
	_, _, ok := diagonalFromTopLeft(img, SeaColor)
	return ok
}

func diagonalFromTopLeft(img image.Image, c PxColor) (int, int, bool) {
	b := img.Bounds()
	for x, y := b.Min.X, b.Min.Y; x < b.Max.X && y < b.Max.Y; x, y = x+1, y+1 {
		if matches(img, x, y, c) {
			return x, y, true
		}
	}
	return 0, 0, false
}

func diagonalFromBottomRight(img image.Image, c PxColor) (int, int, bool) {
	b := img.Bounds()
	for x, y := b.Max.X-1, b.Max.Y-1; x >= b.Min.X && y >= b.Min.Y; x, y = x-1, y-1 {
		if matches(img, x, y, c) {
			return x, y, true
		}
	}
	return 0, 0, false
}
