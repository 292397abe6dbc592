package timelapse

import (
	"context"
	"errors"
	"sort"

	"cartolapse/internal/acquire"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/compositor"
	"cartolapse/internal/logging"
	"cartolapse/internal/scheduler"
)

// acquire runs the scheduler over every artifact that lacks a raster and
// returns the artifacts with their flags updated. Catalog write failures are
// logged; they never fail the acquisition.
func (r *runner) acquire(ctx context.Context, artifacts []checkpoint.Artifact, report *Report) ([]checkpoint.Artifact, error) {
	artifacts = append([]checkpoint.Artifact(nil), artifacts...)
	index := make(map[string]*checkpoint.Artifact, len(artifacts))
	var pending []checkpoint.Artifact
	for i := range artifacts {
		index[artifacts[i].ImageName] = &artifacts[i]
		if artifacts[i].Complete() {
			report.Cached++
			continue
		}
		pending = append(pending, artifacts[i])
	}
	if len(pending) == 0 {
		r.logger.Info("all checkpoints already acquired", logging.Int("checkpoints", len(artifacts)))
		return artifacts, nil
	}

	dbCtx := context.WithoutCancel(ctx)
	opts := scheduler.Options{
		Workers:    r.cfg.Acquisition.Workers,
		MaxRetries: r.cfg.Acquisition.MaxRetries,
		JobTimeout: r.cfg.JobTimeout(),
		Logger:     r.logger,
		OnAttempt: func(a scheduler.Attempt) {
			r.catalogWrite("record attempt", a.Artifact.ImageName,
				r.store.RecordAttempt(dbCtx, a.Artifact.ImageName, a.Err))
		},
		OnSuccess: func(o scheduler.Outcome) {
			index[o.Artifact.ImageName].MarkAcquired()
			r.catalogWrite("mark acquired", o.Artifact.ImageName,
				r.store.MarkAcquired(dbCtx, o.Artifact.ImageName))
		},
		OnFailure: func(o scheduler.Outcome) {
			r.catalogWrite("mark failed", o.Artifact.ImageName,
				r.store.MarkFailed(dbCtx, o.Artifact.ImageName, o.Err))
		},
	}
	factory := acquire.Verified(r.factory, r.layout)
	result, err := scheduler.Run(ctx, scheduler.NewJobs(pending), opts, factory)
	report.Acquired = len(result.Succeeded)
	report.Failures = result.Failed
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Join(err, ctxErr)
	}
	var aggregate *scheduler.AggregateAcquisitionFailure
	if errors.As(err, &aggregate) {
		report.AcquisitionErr = aggregate
	} else if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (r *runner) catalogWrite(op, imageName string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("catalog update failed",
		logging.String("operation", op),
		logging.Artifact(imageName),
		logging.Error(err),
	)
}

// framesOf keeps artifacts with both rasters, in image name order.
func framesOf(artifacts []checkpoint.Artifact, layout checkpoint.Layout) []compositor.Frame {
	var frames []compositor.Frame
	for _, a := range artifacts {
		if !a.Complete() {
			continue
		}
		frames = append(frames, compositor.Frame{
			ImageName:      a.ImageName,
			ScreenshotPath: layout.Screenshot(a),
			OverlayPath:    layout.Overlay(a),
		})
	}
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].ImageName < frames[j].ImageName
	})
	return frames
}
