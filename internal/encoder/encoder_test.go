package encoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

// TestHelperProcess stands in for ffmpeg: it counts stdin bytes (or copies the
// -i input) and writes the count to the last argument.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "failure":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libx264'")
		os.Exit(1)
	default:
		var n int64
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) && args[i+1] != "-" {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					os.Exit(2)
				}
				n = int64(len(data))
			}
		}
		if n == 0 {
			n, _ = io.Copy(io.Discard, os.Stdin)
		}
		if err := os.WriteFile(args[len(args)-1], []byte(strconv.FormatInt(n, 10)), 0o644); err != nil {
			os.Exit(3)
		}
		os.Exit(0)
	}
}

func solidFrame(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestFFmpegSinkPipesRawFrames(t *testing.T) {
	var args []string
	setHelperCommand(t, "success", &args)
	output := filepath.Join(t.TempDir(), "out", "animation-Meadow.mp4")

	sink, err := NewFFmpegSink(context.Background(), FFmpegOptions{
		H264Options: H264Options{CRF: 16, Preset: "veryslow"},
		Output:      output,
		Width:       4,
		Height:      2,
		FrameRate:   30,
	})
	if err != nil {
		t.Fatalf("NewFFmpegSink: %v", err)
	}
	frame := solidFrame(4, 2, color.RGBA{R: 10, A: 255})
	if err := sink.WriteFrame(frame, 3); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.WriteFrame(frame, 1); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != strconv.Itoa(4*4*2*4) {
		t.Fatalf("unexpected byte count %s", data)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f rawvideo", "-pix_fmt rgba", "-s 4x2", "-framerate 30", "-crf 16", "-preset veryslow", "-pix_fmt yuv420p", "-movflags +faststart", evenScale} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args: %s", want, joined)
		}
	}
	if _, err := os.Stat(partialPath(output)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output to be renamed, stat err=%v", err)
	}
}

func TestFFmpegSinkRejectsWrongSize(t *testing.T) {
	setHelperCommand(t, "success", nil)
	sink, err := NewFFmpegSink(context.Background(), FFmpegOptions{
		Output: filepath.Join(t.TempDir(), "a.mp4"), Width: 4, Height: 4, FrameRate: 30,
	})
	if err != nil {
		t.Fatalf("NewFFmpegSink: %v", err)
	}
	defer sink.Abort()
	if err := sink.WriteFrame(solidFrame(2, 2, color.Black), 1); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestFFmpegSinkReportsToolFailure(t *testing.T) {
	setHelperCommand(t, "failure", nil)
	output := filepath.Join(t.TempDir(), "a.mp4")
	sink, err := NewFFmpegSink(context.Background(), FFmpegOptions{Output: output, Width: 2, Height: 2, FrameRate: 30})
	if err != nil {
		t.Fatalf("NewFFmpegSink: %v", err)
	}
	_ = sink.WriteFrame(solidFrame(2, 2, color.Black), 1)
	err = sink.Close()
	if err == nil {
		t.Fatal("expected encode failure")
	}
	if !strings.Contains(err.Error(), "libx264") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed encode must not publish output")
	}
}

func TestTranscodeWritesEvenMP4(t *testing.T) {
	var args []string
	setHelperCommand(t, "success", &args)
	dir := t.TempDir()
	input := filepath.Join(dir, "animation.gif")
	if err := os.WriteFile(input, []byte("GIF89a"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	output := filepath.Join(dir, "animation.mp4")
	if err := Transcode(context.Background(), H264Options{Binary: "/opt/ffmpeg", CRF: 18}, input, output); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if args[0] != "/opt/ffmpeg" {
		t.Fatalf("expected binary override, got %q", args[0])
	}
	if !strings.Contains(strings.Join(args, " "), evenScale) {
		t.Fatalf("expected even scale filter in %v", args)
	}
	data, err := os.ReadFile(output)
	if err != nil || string(data) != "6" {
		t.Fatalf("unexpected output %q err=%v", data, err)
	}
}

func TestTranscodeMissingInput(t *testing.T) {
	setHelperCommand(t, "success", nil)
	dir := t.TempDir()
	if err := Transcode(context.Background(), H264Options{}, filepath.Join(dir, "none.gif"), filepath.Join(dir, "out.mp4")); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestGIFSinkStreamsFrames(t *testing.T) {
	output := filepath.Join(t.TempDir(), "animation.gif")
	sink, err := NewGIFSink(output, 8, 6, 10, nil)
	if err != nil {
		t.Fatalf("NewGIFSink: %v", err)
	}
	if err := sink.WriteFrame(solidFrame(8, 6, color.RGBA{R: 255, A: 255}), 20); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.WriteFrame(solidFrame(8, 6, color.RGBA{B: 255, A: 255}), 1); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer file.Close()
	decoded, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(decoded.Image) != 2 {
		t.Fatalf("expected 2 gif frames, got %d", len(decoded.Image))
	}
	if decoded.Delay[0] != 200 || decoded.Delay[1] != 10 {
		t.Fatalf("unexpected delays %v", decoded.Delay)
	}
	if decoded.LoopCount != 0 {
		t.Fatalf("expected infinite loop, got %d", decoded.LoopCount)
	}
	r, _, b, _ := decoded.Image[1].At(4, 3).RGBA()
	if r != 0 || b>>8 != 0xff {
		t.Fatalf("expected blue second frame, got r=%d b=%d", r, b)
	}
}

func TestGIFDelaysDoNotDrift(t *testing.T) {
	output := filepath.Join(t.TempDir(), "animation.gif")
	sink, err := NewGIFSink(output, 2, 2, 30, nil)
	if err != nil {
		t.Fatalf("NewGIFSink: %v", err)
	}
	for i := 0; i < 30; i++ {
		if err := sink.WriteFrame(solidFrame(2, 2, color.White), 1); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer file.Close()
	decoded, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	total := 0
	for _, d := range decoded.Delay {
		total += d
	}
	if total != 100 {
		t.Fatalf("expected one second of delays, got %d centiseconds", total)
	}
}

func TestFrameDumpSinkNumbersRepeats(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "000009.png")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	sink, err := NewFrameDumpSink(dir)
	if err != nil {
		t.Fatalf("NewFrameDumpSink: %v", err)
	}
	if err := sink.WriteFrame(solidFrame(2, 2, color.Black), 3); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.WriteFrame(solidFrame(2, 2, color.White), 1); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if sink.Count() != 4 {
		t.Fatalf("expected 4 frames, got %d", sink.Count())
	}
	for i := 0; i < 4; i++ {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%06d.png", i))); err != nil {
			t.Fatalf("frame %d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected stale frame to be removed")
	}
	if sink.Pattern() != filepath.Join(dir, "%06d.png") {
		t.Fatalf("unexpected pattern %q", sink.Pattern())
	}
}

type countingSink struct {
	frames int
	closed bool
	err    error
}

func (c *countingSink) WriteFrame(_ *image.RGBA, repeat int) error {
	if c.err != nil {
		return c.err
	}
	c.frames += repeat
	return nil
}

func (c *countingSink) Close() error {
	c.closed = true
	return nil
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	multi := MultiSink{a, b}
	if err := multi.WriteFrame(solidFrame(1, 1, color.Black), 2); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.frames != 2 || b.frames != 2 || !a.closed || !b.closed {
		t.Fatalf("unexpected sink state: %+v %+v", a, b)
	}

	failing := MultiSink{&countingSink{err: errors.New("boom")}, b}
	if err := failing.WriteFrame(solidFrame(1, 1, color.Black), 1); err == nil {
		t.Fatal("expected error from failing sink")
	}
}

func TestArchivePath(t *testing.T) {
	if got := ArchivePath("/out/animation-Meadow.mp4", "/out/archive"); got != filepath.Join("/out/archive", "animation-Meadow.mkv") {
		t.Fatalf("unexpected archive path %q", got)
	}
}
