package encoder

import (
	"errors"
	"image"
)

// Sink consumes composited frames. img is only valid during the call.
type Sink interface {
	WriteFrame(img *image.RGBA, repeat int) error
	Close() error
}

// MultiSink writes every frame to each sink in order.
type MultiSink []Sink

// WriteFrame stops at the first failing sink.
func (m MultiSink) WriteFrame(img *image.RGBA, repeat int) error {
	for _, sink := range m {
		if err := sink.WriteFrame(img, repeat); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Abort closes every sink that supports aborting and closes the rest.
func (m MultiSink) Abort() {
	for _, sink := range m {
		if a, ok := sink.(interface{ Abort() }); ok {
			a.Abort()
			continue
		}
		_ = sink.Close()
	}
}

// repeatOf treats non-positive repeat counts as one frame.
func repeatOf(repeat int) int {
	return max(repeat, 1)
}
