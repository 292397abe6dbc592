package browser

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// decodeDataURL returns the payload of a base64 data URL.
func decodeDataURL(url string) ([]byte, error) {
	header, payload, ok := strings.Cut(url, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}

// alignOverlay places canvas at (dx,dy) on a transparent width x height
// raster, so overlay pixels share the screenshot's coordinates.
func alignOverlay(canvas image.Image, width, height, dx, dy int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	b := canvas.Bounds()
	target := image.Rect(dx, dy, dx+b.Dx(), dy+b.Dy())
	draw.Draw(out, target, canvas, b.Min, draw.Src)
	return out
}
