// Package services defines shared utilities consumed by the pipeline components
// and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp artifact names, worker numbers, component names,
//     and run identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (retryable acquisition, fatal region detection, skipped artifacts)
//     with errors.Is instead of string matching.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform across the run.
package services
