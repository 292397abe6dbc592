package raster

import "image"

// TrackZoom finds the region of interest on an overlay of the given extent,
// in coordinates local to the overlay's bounds origin.
func TrackZoom(overlay image.Image, width, height, padding int) BoundingBox {
	return trackZoom(overlay, overlay.Bounds().Min, width, height, padding)
}

// TrackZoomInRegion scans the part of overlay covered by region and returns a
// window local to the region. Overlay pixels outside the region are ignored
// and region pixels outside the overlay count as transparent.
func TrackZoomInRegion(overlay image.Image, region BoundingBox, padding int) BoundingBox {
	return trackZoom(overlay, image.Pt(region.X, region.Y), region.Size, region.Size, padding)
}

// trackZoom bounds the nonzero-alpha pixels of the width x height window at
// origin, pads the box, squares it, and clamps it inside the window. A blank
// window yields the largest square anchored at the origin.
func trackZoom(overlay image.Image, origin image.Point, width, height, padding int) BoundingBox {
	limit := min(width, height)
	visible := image.Rect(origin.X, origin.Y, origin.X+width, origin.Y+height).Intersect(overlay.Bounds())

	minX, minY := width, height
	maxX, maxY := 0, 0
	blank := true
	for sy := visible.Min.Y; sy < visible.Max.Y; sy++ {
		for sx := visible.Min.X; sx < visible.Max.X; sx++ {
			if alphaAt(overlay, sx, sy) == 0 {
				continue
			}
			x, y := sx-origin.X, sy-origin.Y
			blank = false
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if blank {
		return BoundingBox{X: 0, Y: 0, Size: limit}
	}

	size := max(maxX-minX, maxY-minY) + 2*padding
	x := minX - padding
	y := minY - padding
	size = max(min(size, limit), 1)
	if overflow := x + size - width; overflow > 0 {
		x -= overflow
	}
	if overflow := y + size - height; overflow > 0 {
		y -= overflow
	}
	x = max(x, 0)
	y = max(y, 0)
	return BoundingBox{X: x, Y: y, Size: size}
}
