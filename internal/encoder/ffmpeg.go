package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

var commandContext = exec.CommandContext

// evenScale forces even output dimensions, which yuv420p requires.
const evenScale = "scale=trunc(iw/2)*2:trunc(ih/2)*2"

// H264Options are the x264 settings shared by the pipe and the transcoder.
type H264Options struct {
	Binary string
	CRF    int
	Preset string
}

func (o H264Options) binary() string {
	if b := strings.TrimSpace(o.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (o H264Options) outputArgs() []string {
	preset := strings.TrimSpace(o.Preset)
	if preset == "" {
		preset = "veryslow"
	}
	return []string{
		"-c:v", "libx264",
		"-crf", strconv.Itoa(o.CRF),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-vf", evenScale,
		"-f", "mp4",
	}
}

// FFmpegOptions configures an FFmpegSink.
type FFmpegOptions struct {
	H264Options
	Output    string
	Width     int
	Height    int
	FrameRate int
	Logger    *slog.Logger
}

// FFmpegSink streams raw RGBA frames into an ffmpeg process. Output is
// written beside the destination and renamed into place by Close.
type FFmpegSink struct {
	opts    FFmpegOptions
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *tailBuffer
	partial string
	logger  *slog.Logger
	row     []byte
	frames  int
	closed  bool
}

// NewFFmpegSink starts ffmpeg. The process ends when ctx is cancelled.
func NewFFmpegSink(ctx context.Context, opts FFmpegOptions) (*FFmpegSink, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "ffmpeg", fmt.Sprintf("invalid frame size %dx%d", opts.Width, opts.Height), nil)
	}
	if opts.FrameRate <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "ffmpeg", "frame rate must be positive", nil)
	}
	if strings.TrimSpace(opts.Output) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "ffmpeg", "output path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}

	partial := partialPath(opts.Output)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.Itoa(opts.FrameRate),
		"-i", "-",
	}
	args = append(args, opts.outputArgs()...)
	args = append(args, partial)

	cmd := commandContext(ctx, opts.binary(), args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stderr := newTailBuffer(8 << 10)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "encoder", "start ffmpeg", opts.binary(), err)
	}

	logger := logging.NewComponentLogger(opts.Logger, "encoder")
	logger.Debug("ffmpeg started", logging.String("output", opts.Output), logging.String("args", strings.Join(args, " ")))
	return &FFmpegSink{
		opts:    opts,
		cmd:     cmd,
		stdin:   stdin,
		stderr:  stderr,
		partial: partial,
		logger:  logger,
		row:     make([]byte, opts.Width*4),
	}, nil
}

// WriteFrame writes img repeat times. img must match the configured size.
func (s *FFmpegSink) WriteFrame(img *image.RGBA, repeat int) error {
	if s.closed {
		return errors.New("ffmpeg sink closed")
	}
	b := img.Bounds()
	if b.Dx() != s.opts.Width || b.Dy() != s.opts.Height {
		return services.Wrap(services.ErrValidation, "encoder", "write frame",
			fmt.Sprintf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), s.opts.Width, s.opts.Height), nil)
	}
	for n := 0; n < repeatOf(repeat); n++ {
		if err := s.writeRGBA(img); err != nil {
			return s.failure("write frame", err)
		}
		s.frames++
	}
	return nil
}

func (s *FFmpegSink) writeRGBA(img *image.RGBA) error {
	b := img.Bounds()
	width := b.Dx() * 4
	if img.Stride == width && b.Min == (image.Point{}) {
		_, err := s.stdin.Write(img.Pix[:width*b.Dy()])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		offset := img.PixOffset(b.Min.X, y)
		copy(s.row, img.Pix[offset:offset+width])
		if _, err := s.stdin.Write(s.row); err != nil {
			return err
		}
	}
	return nil
}

// Close finishes the stream, waits for ffmpeg, and publishes the output.
func (s *FFmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		_ = os.Remove(s.partial)
		return s.failure("encode", err)
	}
	if err := os.Rename(s.partial, s.opts.Output); err != nil {
		return fmt.Errorf("publish %s: %w", s.opts.Output, err)
	}
	s.logger.Info("animation encoded",
		logging.String("output", s.opts.Output),
		logging.Int("frames", s.frames),
	)
	return nil
}

// Abort stops ffmpeg and removes partial output.
func (s *FFmpegSink) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	_ = os.Remove(s.partial)
}

func (s *FFmpegSink) failure(op string, err error) error {
	detail := s.stderr.String()
	if detail == "" {
		detail = s.opts.binary()
	}
	return services.Wrap(services.ErrExternalTool, "encoder", op, detail, err)
}

// Transcode converts input to an H.264 MP4 at output with even dimensions.
func Transcode(ctx context.Context, opts H264Options, input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return services.Wrap(services.ErrValidation, "encoder", "transcode", "input missing", err)
	}
	partial := partialPath(output)
	args := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", input}, opts.outputArgs()...)
	args = append(args, partial)

	stderr := newTailBuffer(8 << 10)
	cmd := commandContext(ctx, opts.binary(), args...) //nolint:gosec
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(partial)
		detail := stderr.String()
		if detail == "" {
			detail = input
		}
		return services.Wrap(services.ErrExternalTool, "encoder", "transcode", detail, err)
	}
	if err := os.Rename(partial, output); err != nil {
		return fmt.Errorf("publish %s: %w", output, err)
	}
	return nil
}

// partialPath keeps the extension last so tools still recognize the container.
func partialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if extra := t.buf.Len() - t.limit; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
