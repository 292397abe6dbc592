package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"cartolapse/internal/fileutil"
	"cartolapse/internal/services"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Load decodes a PNG raster. Decode failures are reported as malformed artifacts.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedArtifact, "raster", "load", path, err)
	}
	defer file.Close()

	img, err := png.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedArtifact, "raster", "decode", path, err)
	}
	return img, nil
}

// Dimensions reads only the PNG header of path.
func Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, err := png.DecodeConfig(file)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrMalformedArtifact, "raster", "decode header", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Save writes img as PNG to path atomically.
func Save(path string, img image.Image) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		buffered := bufio.NewWriterSize(w, 1<<20)
		if err := encoder.Encode(buffered, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return buffered.Flush()
	})
}

// Decode reads a PNG from r.
func Decode(r io.Reader) (image.Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedArtifact, "raster", "decode", "png stream", err)
	}
	return img, nil
}
