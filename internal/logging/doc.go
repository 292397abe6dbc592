// Package logging assembles structured slog loggers and formatting helpers used
// across cartolapse.
//
// It owns the console and JSON handlers, the per-run log file, and
// context-aware helpers that tag records with the component, worker slot,
// artifact, and run identifier carried on a context. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
