// Package timelapse runs the whole pipeline for one invocation.
//
// A run takes the single-instance lock, checks its environment, discovers the
// checkpoint session to render, acquires the rasters that are still missing
// through the scheduler, detects the session region on the first frame, and
// streams the composited animation into the configured encoder sinks. The
// catalog records per-artifact progress and a row per run so the status
// command can report on both.
//
// Acquisition failures are tolerated as long as at least one frame remains;
// the aggregate failure is surfaced on the Report instead of failing the run.
package timelapse
