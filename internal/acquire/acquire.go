// Package acquire defines the contract between the scheduler and whatever
// renders a checkpoint into a screenshot and a transparency overlay.
//
// A Session is heavyweight (a browser, for the default adapter) and is owned
// by exactly one scheduler worker for that worker's lifetime.
package acquire

import (
	"context"
	"fmt"

	"cartolapse/internal/checkpoint"
	"cartolapse/internal/raster"
	"cartolapse/internal/services"
)

// Session renders checkpoints one at a time. On success both rasters exist at
// the layout paths keyed by the artifact's image name.
type Session interface {
	Acquire(ctx context.Context, artifact checkpoint.Artifact) error
	Close() error
}

// SessionFactory opens one session per worker.
type SessionFactory interface {
	Open(ctx context.Context, worker int) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context, worker int) (Session, error)

// Open calls f.
func (f SessionFactoryFunc) Open(ctx context.Context, worker int) (Session, error) {
	return f(ctx, worker)
}

// Verified wraps a factory so every acquisition is checked on disk: both
// rasters must exist and the screenshot must show the sea sentinel on its
// diagonal. Failed checks are reported as acquisition errors so the scheduler
// retries them.
func Verified(inner SessionFactory, layout checkpoint.Layout) SessionFactory {
	return SessionFactoryFunc(func(ctx context.Context, worker int) (Session, error) {
		session, err := inner.Open(ctx, worker)
		if err != nil {
			return nil, err
		}
		return &verifiedSession{inner: session, layout: layout}, nil
	})
}

type verifiedSession struct {
	inner  Session
	layout checkpoint.Layout
}

func (s *verifiedSession) Acquire(ctx context.Context, artifact checkpoint.Artifact) error {
	if err := s.inner.Acquire(ctx, artifact); err != nil {
		return err
	}
	return Verify(s.layout, artifact)
}

func (s *verifiedSession) Close() error {
	return s.inner.Close()
}

// Verify checks the rasters an acquisition left behind.
func Verify(layout checkpoint.Layout, artifact checkpoint.Artifact) error {
	if _, _, err := raster.Dimensions(layout.Overlay(artifact)); err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "verify", "overlay unreadable", err)
	}
	shot, err := raster.Load(layout.Screenshot(artifact))
	if err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "verify", "screenshot unreadable", err)
	}
	if !raster.ValidScreenshot(shot) {
		return services.Wrap(services.ErrAcquisition, "acquire", "verify",
			fmt.Sprintf("screenshot %s lacks the sea sentinel; map not rendered", artifact.ImageName), nil)
	}
	return nil
}
