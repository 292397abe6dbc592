package timelapse

import (
	"context"

	"cartolapse/internal/acquire"
	"cartolapse/internal/config"
	"cartolapse/internal/encoder"
	"cartolapse/internal/preflight"
)

// Option customizes a pipeline run.
type Option func(*runner)

// WithRunID sets the run identifier recorded in the catalog. A random one is
// generated otherwise.
func WithRunID(id string) Option {
	return func(r *runner) {
		r.runID = id
	}
}

// WithLogPath names the current run log so retention never prunes it.
func WithLogPath(path string) Option {
	return func(r *runner) {
		r.logPath = path
	}
}

// WithSessionFactory replaces the browser adapter.
func WithSessionFactory(factory acquire.SessionFactory) Option {
	return func(r *runner) {
		r.factory = factory
	}
}

// WithPreflight replaces the environment checks.
func WithPreflight(check func(context.Context, *config.Config) []preflight.Result) Option {
	return func(r *runner) {
		r.preflight = check
	}
}

// WithArchiver replaces the archival encoder.
func WithArchiver(archiver encoder.Archiver) Option {
	return func(r *runner) {
		r.archiver = archiver
	}
}
