package encoder

import (
	"bufio"
	"compress/lzw"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

// maxGIFDelay is the largest frame delay a GIF can hold, in centiseconds.
const maxGIFDelay = math.MaxUint16

// GIFSink writes an endlessly looping GIF one frame at a time. Repeated
// frames become a single GIF frame with a longer delay. Frames are quantized
// to the web-safe palette with Floyd-Steinberg dithering.
type GIFSink struct {
	output    string
	partial   string
	file      *os.File
	w         *bufio.Writer
	width     int
	height    int
	frameTime time.Duration
	elapsed   time.Duration
	paletted  *image.Paletted
	logger    *slog.Logger
	frames    int
	closed    bool
}

// NewGIFSink creates output and writes the GIF header.
func NewGIFSink(output string, width, height, fps int, logger *slog.Logger) (*GIFSink, error) {
	if width <= 0 || height <= 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "gif", fmt.Sprintf("invalid frame size %dx%d", width, height), nil)
	}
	if fps <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "encoder", "gif", "frame rate must be positive", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}
	partial := partialPath(output)
	file, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("create gif: %w", err)
	}
	s := &GIFSink{
		output:    output,
		partial:   partial,
		file:      file,
		w:         bufio.NewWriterSize(file, 1<<20),
		width:     width,
		height:    height,
		frameTime: time.Second / time.Duration(fps),
		paletted:  image.NewPaletted(image.Rect(0, 0, width, height), palette.WebSafe),
		logger:    logging.NewComponentLogger(logger, "encoder"),
	}
	if err := s.writeHeader(); err != nil {
		s.Abort()
		return nil, err
	}
	return s, nil
}

func (s *GIFSink) writeHeader() error {
	var hdr []byte
	hdr = append(hdr, "GIF89a"...)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(s.width))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(s.height))
	// No global color table; background 0; square pixels.
	hdr = append(hdr, 0x00, 0x00, 0x00)
	// NETSCAPE2.0 application extension, loop forever.
	hdr = append(hdr, 0x21, 0xff, 0x0b)
	hdr = append(hdr, "NETSCAPE2.0"...)
	hdr = append(hdr, 0x03, 0x01, 0x00, 0x00, 0x00)
	_, err := s.w.Write(hdr)
	return err
}

// WriteFrame quantizes img and appends it with a delay covering repeat frames.
func (s *GIFSink) WriteFrame(img *image.RGBA, repeat int) error {
	if s.closed {
		return errors.New("gif sink closed")
	}
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return services.Wrap(services.ErrValidation, "encoder", "write frame",
			fmt.Sprintf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), s.width, s.height), nil)
	}
	draw.FloydSteinberg.Draw(s.paletted, s.paletted.Bounds(), img, b.Min)

	// Delays are rounded on the running clock so rounding never accumulates.
	start := centiseconds(s.elapsed)
	s.elapsed += time.Duration(repeatOf(repeat)) * s.frameTime
	delay := centiseconds(s.elapsed) - start
	for delay > maxGIFDelay {
		if err := s.writeImage(maxGIFDelay); err != nil {
			return err
		}
		delay -= maxGIFDelay
	}
	if err := s.writeImage(delay); err != nil {
		return err
	}
	s.frames++
	return nil
}

func (s *GIFSink) writeImage(delay int) error {
	var hdr []byte
	// Graphic control extension: no disposal, no transparency.
	hdr = append(hdr, 0x21, 0xf9, 0x04, 0x00)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(delay))
	hdr = append(hdr, 0x00, 0x00)
	// Image descriptor with a 256-entry local color table.
	hdr = append(hdr, 0x2c, 0x00, 0x00, 0x00, 0x00)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(s.width))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(s.height))
	hdr = append(hdr, 0x80|0x07)
	hdr = appendColorTable(hdr, s.paletted.Palette)
	// LZW minimum code size.
	hdr = append(hdr, 0x08)
	if _, err := s.w.Write(hdr); err != nil {
		return fmt.Errorf("write gif frame header: %w", err)
	}

	blocks := &blockWriter{w: s.w}
	lzwWriter := lzw.NewWriter(blocks, lzw.LSB, 8)
	for y := 0; y < s.height; y++ {
		offset := y * s.paletted.Stride
		if _, err := lzwWriter.Write(s.paletted.Pix[offset : offset+s.width]); err != nil {
			_ = lzwWriter.Close()
			return fmt.Errorf("compress gif frame: %w", err)
		}
	}
	if err := lzwWriter.Close(); err != nil {
		return fmt.Errorf("compress gif frame: %w", err)
	}
	if err := blocks.close(); err != nil {
		return fmt.Errorf("write gif frame: %w", err)
	}
	return nil
}

// Close writes the trailer and publishes the file.
func (s *GIFSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.WriteByte(0x3b); err != nil {
		s.discard()
		return fmt.Errorf("write gif trailer: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("flush gif: %w", err)
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.partial)
		return fmt.Errorf("close gif: %w", err)
	}
	if err := os.Rename(s.partial, s.output); err != nil {
		return fmt.Errorf("publish %s: %w", s.output, err)
	}
	s.logger.Info("animation encoded", logging.String("output", s.output), logging.Int("frames", s.frames))
	return nil
}

// Abort removes partial output.
func (s *GIFSink) Abort() {
	s.closed = true
	s.discard()
}

func (s *GIFSink) discard() {
	_ = s.file.Close()
	_ = os.Remove(s.partial)
}

func appendColorTable(dst []byte, p color.Palette) []byte {
	for i := 0; i < 256; i++ {
		if i >= len(p) {
			dst = append(dst, 0, 0, 0)
			continue
		}
		c := color.RGBAModel.Convert(p[i]).(color.RGBA)
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}

func centiseconds(d time.Duration) int {
	return int((d + 5*time.Millisecond) / (10 * time.Millisecond))
}

// blockWriter splits a stream into GIF data sub-blocks of at most 255 bytes.
type blockWriter struct {
	w   io.Writer
	buf [256]byte
	n   int
}

func (b *blockWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		k := copy(b.buf[1+b.n:], p)
		b.n += k
		p = p[k:]
		written += k
		if b.n == 255 {
			if err := b.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (b *blockWriter) flush() error {
	if b.n == 0 {
		return nil
	}
	b.buf[0] = byte(b.n)
	_, err := b.w.Write(b.buf[:1+b.n])
	b.n = 0
	return err
}

// close flushes pending data and writes the block terminator.
func (b *blockWriter) close() error {
	if err := b.flush(); err != nil {
		return err
	}
	_, err := b.w.Write([]byte{0x00})
	return err
}
