package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"cartolapse/internal/raster"
)

// renderer scales screenshot windows onto square canvases. Samples outside the
// screenshot leave the opaque black background.
type renderer struct {
	size    int
	scratch *image.RGBA
}

func newRenderer(size int) *renderer {
	return &renderer{size: size}
}

// window draws the part of src under the region-local window w.
func (r *renderer) window(dst *image.RGBA, src image.Image, region, w raster.BoundingBox) {
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	scale := float64(r.size) / float64(w.Size)
	ox := float64(region.X + w.X)
	oy := float64(region.Y + w.Y)
	s2d := f64.Aff3{
		scale, 0, -scale * ox,
		0, scale, -scale * oy,
	}
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Over, nil)
}

// crossfade draws prev at w, then cur at w with opacity t.
func (r *renderer) crossfade(dst *image.RGBA, prev, cur image.Image, region, w raster.BoundingBox, t float64) {
	alpha := opacity(t)
	switch alpha {
	case 0:
		r.window(dst, prev, region, w)
		return
	case 0xff:
		r.window(dst, cur, region, w)
		return
	}
	r.window(dst, prev, region, w)
	if r.scratch == nil {
		r.scratch = image.NewRGBA(dst.Bounds())
	}
	r.window(r.scratch, cur, region, w)
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, dst.Bounds(), r.scratch, image.Point{}, mask, image.Point{}, draw.Over)
}

// opacity quantizes t to an 8-bit alpha.
func opacity(t float64) uint8 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 0xff
	default:
		return uint8(math.Round(t * 0xff))
	}
}
