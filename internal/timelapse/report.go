package timelapse

import (
	"time"

	"cartolapse/internal/compositor"
	"cartolapse/internal/raster"
	"cartolapse/internal/scheduler"
)

// Report summarizes a finished run.
type Report struct {
	RunID   string
	Session string
	// SessionReason explains why Session was rendered.
	SessionReason string
	Discovered    int
	Skipped       int
	Imported      int

	// Acquired counts artifacts acquired during this run; Cached counts those
	// whose rasters were already on disk.
	Acquired int
	Cached   int
	Failures []scheduler.Outcome
	// AcquisitionErr is the aggregate failure when some acquisitions failed
	// but enough frames remained to render.
	AcquisitionErr error

	// Frames counts checkpoints in the animation; SkippedFrames names those
	// dropped because a raster could not be read.
	Frames        int
	SkippedFrames []string
	Region        raster.BoundingBox
	Stats  compositor.Stats

	Output     string
	Transcoded string
	Archive    string
	FramesDir    string
	FramesDumped int
	Elapsed      time.Duration
}

// Outputs lists the files the run produced, primary animation first.
func (r Report) Outputs() []string {
	var out []string
	for _, path := range []string{r.Output, r.Transcoded, r.Archive} {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}
