package compositor_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"
	"time"

	"cartolapse/internal/compositor"
	"cartolapse/internal/raster"
)

type recordedFrame struct {
	digest [32]byte
	center color.RGBA
	repeat int
}

type recordingSink struct {
	frames []recordedFrame
	failAt int
}

func (s *recordingSink) WriteFrame(img *image.RGBA, repeat int) error {
	if s.failAt > 0 && len(s.frames)+1 == s.failAt {
		return errors.New("disk full")
	}
	b := img.Bounds()
	s.frames = append(s.frames, recordedFrame{
		digest: sha256.Sum256(img.Pix),
		center: img.RGBAAt(b.Dx()/2, b.Dy()/2),
		repeat: repeat,
	})
	return nil
}

func solid(size int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func writeFrame(t *testing.T, dir, name string, shot color.Color, overlay image.Image) compositor.Frame {
	t.Helper()
	frame := compositor.Frame{
		ImageName:      name,
		ScreenshotPath: filepath.Join(dir, "screenshots", name),
		OverlayPath:    filepath.Join(dir, "overlays", name),
	}
	if err := raster.Save(frame.ScreenshotPath, solid(64, shot)); err != nil {
		t.Fatalf("save screenshot: %v", err)
	}
	if overlay == nil {
		overlay = image.NewNRGBA(image.Rect(0, 0, 64, 64))
	}
	if err := raster.Save(frame.OverlayPath, overlay); err != nil {
		t.Fatalf("save overlay: %v", err)
	}
	return frame
}

func testOptions() compositor.Options {
	return compositor.Options{
		OutputSize:           16,
		FrameRate:            10,
		BaseTransitionFrames: 4,
		Normalization:        500,
		ZoomPadding:          0,
		InitialHold:          200 * time.Millisecond,
		FinalHold:            500 * time.Millisecond,
	}
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestRenderSequence(t *testing.T) {
	dir := t.TempDir()
	frames := []compositor.Frame{
		writeFrame(t, dir, "20260101000000__s_a.png", red, nil),
		writeFrame(t, dir, "20260101000100__s_b.png", blue, nil),
	}
	region := raster.BoundingBox{X: 0, Y: 0, Size: 64}

	sink := &recordingSink{}
	stats, err := compositor.Render(context.Background(), frames, region, testOptions(), sink)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// initial hold, settled a, 5 transition samples, final hold on b
	if len(sink.frames) != 8 {
		t.Fatalf("expected 8 emitted frames, got %d", len(sink.frames))
	}
	if sink.frames[0].repeat != 2 || sink.frames[7].repeat != 5 {
		t.Fatalf("unexpected hold repeats: %d, %d", sink.frames[0].repeat, sink.frames[7].repeat)
	}
	if stats.Total != 2+1+5+5 || stats.Emitted != 8 || stats.Transitions != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if sink.frames[2].center != red {
		t.Fatalf("transition should start on the previous frame, got %v", sink.frames[2].center)
	}
	if sink.frames[6].center != blue {
		t.Fatalf("transition should end on the current frame, got %v", sink.frames[6].center)
	}
	mid := sink.frames[4].center
	if mid.R < 100 || mid.R > 160 || mid.B < 100 || mid.B > 160 {
		t.Fatalf("expected a half cross-fade, got %v", mid)
	}
	if stats.Duration(10) != 1300*time.Millisecond {
		t.Fatalf("unexpected playback duration %s", stats.Duration(10))
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	overlay := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 20; y < 30; y++ {
		for x := 30; x < 40; x++ {
			overlay.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	frames := []compositor.Frame{
		writeFrame(t, dir, "a.png", red, nil),
		writeFrame(t, dir, "b.png", blue, overlay),
		writeFrame(t, dir, "c.png", red, nil),
	}
	region := raster.BoundingBox{X: -8, Y: -8, Size: 80}

	first := &recordingSink{}
	if _, err := compositor.Render(context.Background(), frames, region, testOptions(), first); err != nil {
		t.Fatalf("Render: %v", err)
	}
	second := &recordingSink{}
	if _, err := compositor.Render(context.Background(), frames, region, testOptions(), second); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(first.frames) != len(second.frames) {
		t.Fatalf("frame counts differ: %d vs %d", len(first.frames), len(second.frames))
	}
	for i := range first.frames {
		if first.frames[i] != second.frames[i] {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
}

func TestRenderSkipsUnreadableFrames(t *testing.T) {
	dir := t.TempDir()
	broken := compositor.Frame{
		ImageName:      "b.png",
		ScreenshotPath: filepath.Join(dir, "missing.png"),
		OverlayPath:    filepath.Join(dir, "missing.png"),
	}
	frames := []compositor.Frame{
		writeFrame(t, dir, "a.png", red, nil),
		broken,
		writeFrame(t, dir, "c.png", blue, nil),
	}
	sink := &recordingSink{}
	stats, err := compositor.Render(context.Background(), frames, raster.BoundingBox{Size: 64}, testOptions(), sink)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(stats.Skipped) != 1 || stats.Skipped[0] != "b.png" {
		t.Fatalf("expected b.png skipped, got %v", stats.Skipped)
	}
	if stats.Transitions != 1 {
		t.Fatalf("expected one transition, got %d", stats.Transitions)
	}
}

func TestRenderPropagatesSinkError(t *testing.T) {
	dir := t.TempDir()
	frames := []compositor.Frame{
		writeFrame(t, dir, "a.png", red, nil),
		writeFrame(t, dir, "b.png", blue, nil),
	}
	sink := &recordingSink{failAt: 3}
	_, err := compositor.Render(context.Background(), frames, raster.BoundingBox{Size: 64}, testOptions(), sink)
	if err == nil {
		t.Fatal("expected sink error")
	}
	if len(sink.frames) != 2 {
		t.Fatalf("expected rendering to stop after the failure, got %d frames", len(sink.frames))
	}
}

func TestRenderRejectsEmptyInput(t *testing.T) {
	if _, err := compositor.Render(context.Background(), nil, raster.BoundingBox{Size: 64}, testOptions(), &recordingSink{}); err == nil {
		t.Fatal("expected error for no frames")
	}
}
