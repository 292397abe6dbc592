package timelapse

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"cartolapse/internal/compositor"
	"cartolapse/internal/encoder"
	"cartolapse/internal/logging"
	"cartolapse/internal/raster"
	"cartolapse/internal/services"
)

// render detects the session region on the first readable frame and streams
// the animation into the configured sinks, then runs the follow-up encodes.
func (r *runner) render(ctx context.Context, session string, frames []compositor.Frame, report *Report) error {
	region, frames, err := r.detectRegion(frames, report)
	if err != nil {
		report.Frames = 0
		return err
	}

	encodeCtx := ctx
	if timeout := r.cfg.EncoderTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output := r.cfg.AnimationPath(session)
	sinks, dump, err := r.openSinks(encodeCtx, output)
	if err != nil {
		return err
	}
	stats, err := compositor.Render(encodeCtx, frames, region, compositor.OptionsFromConfig(r.cfg, r.logger), sinks)
	report.Stats = stats
	report.SkippedFrames = append(report.SkippedFrames, stats.Skipped...)
	report.Frames = len(frames) - len(stats.Skipped)
	if err != nil {
		sinks.Abort()
		return err
	}
	if err := sinks.Close(); err != nil {
		return err
	}
	report.Output = output
	if dump != nil {
		report.FramesDir = r.cfg.FramesDir()
		report.FramesDumped = dump.Count()
		r.logger.Info("frames dumped",
			logging.String("pattern", dump.Pattern()),
			logging.Int("frames", dump.Count()),
		)
	}

	playable := output
	if r.cfg.Encoder.Format == "gif" && r.cfg.Encoder.TranscodeGIF {
		transcoded := strings.TrimSuffix(output, filepath.Ext(output)) + ".mp4"
		if err := encoder.Transcode(encodeCtx, r.h264(), output, transcoded); err != nil {
			return err
		}
		report.Transcoded = transcoded
		playable = transcoded
	}
	if r.cfg.Encoder.ArchiveAV1 {
		archive, err := r.archiver.Archive(encodeCtx, playable, filepath.Join(r.cfg.Paths.OutputDir, "archive"))
		if err != nil {
			return err
		}
		report.Archive = archive
	}
	return nil
}

// detectRegion finds the session region on the first screenshot that decodes.
// Unreadable frames ahead of it are dropped with a warning; RegionNotFound on
// the reference screenshot is fatal.
func (r *runner) detectRegion(frames []compositor.Frame, report *Report) (raster.BoundingBox, []compositor.Frame, error) {
	for i, frame := range frames {
		reference, err := raster.Load(frame.ScreenshotPath)
		if err != nil {
			if !errors.Is(err, services.ErrMalformedArtifact) {
				return raster.BoundingBox{}, nil, err
			}
			logging.WarnWithContext(r.logger, "frame skipped", "frame_skipped",
				logging.Artifact(frame.ImageName),
				logging.Error(err),
				logging.String(logging.FieldImpact, "checkpoint missing from the animation"),
				logging.String(logging.FieldErrorHint, "delete the screenshot to acquire it again"),
			)
			report.SkippedFrames = append(report.SkippedFrames, frame.ImageName)
			continue
		}
		region, err := raster.DetectRegion(reference, r.cfg.Timelapse.MapPadding)
		if err != nil {
			return raster.BoundingBox{}, nil, err
		}
		report.Region = region
		r.logger.Info("map region detected",
			logging.String("region", region.String()),
			logging.Artifact(frame.ImageName),
		)
		return region, frames[i:], nil
	}
	return raster.BoundingBox{}, nil, services.Wrap(services.ErrMalformedArtifact, "timelapse", "region", "no readable screenshot", nil)
}

func (r *runner) openSinks(ctx context.Context, output string) (encoder.MultiSink, *encoder.FrameDumpSink, error) {
	size := r.cfg.Timelapse.OutputSize
	fps := r.cfg.Timelapse.FrameRate

	var sinks encoder.MultiSink
	switch r.cfg.Encoder.Format {
	case "gif":
		sink, err := encoder.NewGIFSink(output, size, size, fps, r.logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	case "mp4":
		sink, err := encoder.NewFFmpegSink(ctx, encoder.FFmpegOptions{
			H264Options: r.h264(),
			Output:      output,
			Width:       size,
			Height:      size,
			FrameRate:   fps,
			Logger:      r.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	default:
		return nil, nil, services.Wrap(services.ErrConfiguration, "timelapse", "encoder", "unsupported format "+r.cfg.Encoder.Format, nil)
	}
	var dump *encoder.FrameDumpSink
	if r.cfg.Timelapse.DumpFrames {
		var err error
		if dump, err = encoder.NewFrameDumpSink(r.cfg.FramesDir()); err != nil {
			sinks.Abort()
			return nil, nil, err
		}
		sinks = append(sinks, dump)
	}
	return sinks, dump, nil
}

func (r *runner) h264() encoder.H264Options {
	return encoder.H264Options{
		Binary: r.cfg.FFmpegBinary(),
		CRF:    r.cfg.Encoder.CRF,
		Preset: r.cfg.Encoder.Preset,
	}
}
