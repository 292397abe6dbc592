package testsupport

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"cartolapse/internal/checkpoint"
	"cartolapse/internal/raster"
)

// MapScreenshot draws a size x size screenshot filled with fill whose map
// spans [size/8, size-size/8): a sea block marks the top-left corner and a
// void block the bottom-right one.
func MapScreenshot(size int, fill color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	edge := size / 8
	block := max(size/8, 1)
	draw.Draw(img, image.Rect(edge, edge, edge+block, edge+block),
		image.NewUniform(raster.SeaColor.NRGBA()), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(size-edge-block, size-edge-block, size-edge, size-edge),
		image.NewUniform(raster.VoidColor.NRGBA()), image.Point{}, draw.Src)
	return img
}

// Overlay draws a transparent size x size overlay with an opaque square over
// content.
func Overlay(size int, content image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, content, image.NewUniform(color.NRGBA{R: 0xff, A: 0xff}), image.Point{}, draw.Src)
	return img
}

// WriteRasters saves a screenshot and overlay for artifact at the layout paths.
func WriteRasters(t testing.TB, layout checkpoint.Layout, artifact checkpoint.Artifact, screenshot, overlay image.Image) {
	t.Helper()

	if err := raster.Save(layout.Screenshot(artifact), screenshot); err != nil {
		t.Fatalf("save screenshot: %v", err)
	}
	if err := raster.Save(layout.Overlay(artifact), overlay); err != nil {
		t.Fatalf("save overlay: %v", err)
	}
}
