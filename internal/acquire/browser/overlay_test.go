package browser

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	got, err := decodeDataURL(url)
	if err != nil {
		t.Fatalf("decodeDataURL: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestDecodeDataURLRejectsMalformed(t *testing.T) {
	for _, url := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:image/png;base64,@@@",
	} {
		if _, err := decodeDataURL(url); err == nil {
			t.Fatalf("expected error for %q", url)
		}
	}
}

func TestAlignOverlayPlacesCanvasAtOffset(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			canvas.SetNRGBA(x, y, color.NRGBA{R: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	out := alignOverlay(decoded, 10, 10, 3, 5)
	if out.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if a := out.NRGBAAt(3, 5).A; a != 0xff {
		t.Fatalf("expected opaque pixel at offset, alpha %d", a)
	}
	if a := out.NRGBAAt(6, 8).A; a != 0xff {
		t.Fatalf("expected opaque pixel at far corner, alpha %d", a)
	}
	if a := out.NRGBAAt(2, 5).A; a != 0 {
		t.Fatalf("expected transparent pixel left of canvas, alpha %d", a)
	}
	if a := out.NRGBAAt(7, 9).A; a != 0 {
		t.Fatalf("expected transparent pixel past canvas, alpha %d", a)
	}
}

func TestAlignOverlayClipsNegativeOffset(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	canvas.SetNRGBA(3, 3, color.NRGBA{B: 0xff, A: 0xff})
	out := alignOverlay(canvas, 4, 4, -2, -2)
	if a := out.NRGBAAt(1, 1).A; a != 0xff {
		t.Fatalf("expected shifted pixel at (1,1), alpha %d", a)
	}
}

func TestZoomHash(t *testing.T) {
	tests := []struct {
		zoom float64
		want string
	}{
		{zoom: 4.25, want: "4.25;0;0|gameLayer|"},
		{zoom: 3, want: "3;0;0|gameLayer|"},
	}
	for _, tt := range tests {
		if got := zoomHash(tt.zoom); got != tt.want {
			t.Fatalf("zoomHash(%v) = %q, want %q", tt.zoom, got, tt.want)
		}
	}
}

func TestNewFactoryDefaultsPollInterval(t *testing.T) {
	f := NewFactory(Options{})
	if f.opts.PollInterval <= 0 {
		t.Fatal("expected positive poll interval")
	}
}
