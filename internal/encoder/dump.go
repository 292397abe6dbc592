package encoder

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"cartolapse/internal/fileutil"
	"cartolapse/internal/raster"
)

// FrameDumpSink stores every logical frame as dir/%06d.png. Repeats of a frame
// are hard links to the first copy, or plain copies where links fail.
type FrameDumpSink struct {
	dir   string
	index int
}

// NewFrameDumpSink clears stale numbered frames from dir and returns a sink
// that writes new ones.
func NewFrameDumpSink(dir string) (*FrameDumpSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure frames directory: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "[0-9][0-9][0-9][0-9][0-9][0-9].png"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale frame: %w", err)
		}
	}
	return &FrameDumpSink{dir: dir}, nil
}

// WriteFrame saves img once and links it repeat-1 more times.
func (s *FrameDumpSink) WriteFrame(img *image.RGBA, repeat int) error {
	first := s.path(s.index)
	if err := raster.Save(first, img); err != nil {
		return fmt.Errorf("dump frame %d: %w", s.index, err)
	}
	s.index++
	for n := 1; n < repeatOf(repeat); n++ {
		next := s.path(s.index)
		if err := os.Link(first, next); err != nil {
			if err := fileutil.CopyFile(first, next); err != nil {
				return fmt.Errorf("dump frame %d: %w", s.index, err)
			}
		}
		s.index++
	}
	return nil
}

// Close is a no-op; frames are complete once written.
func (s *FrameDumpSink) Close() error { return nil }

// Count is the number of frames written.
func (s *FrameDumpSink) Count() int { return s.index }

// Pattern is the ffmpeg input pattern matching the dumped frames.
func (s *FrameDumpSink) Pattern() string {
	return filepath.Join(s.dir, "%06d.png")
}

func (s *FrameDumpSink) path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d.png", index))
}
