package compositor

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"cartolapse/internal/config"
	"cartolapse/internal/logging"
	"cartolapse/internal/raster"
	"cartolapse/internal/services"
)

// Frame is one acquired checkpoint in the animation.
type Frame struct {
	ImageName      string
	ScreenshotPath string
	OverlayPath    string
}

// FrameWriter consumes rendered frames. The canvas is reused once WriteFrame
// returns, so implementations must not retain it.
type FrameWriter interface {
	WriteFrame(img *image.RGBA, repeat int) error
}

// Options tunes the animation.
type Options struct {
	OutputSize           int
	FrameRate            int
	BaseTransitionFrames int
	Normalization        float64
	ZoomPadding          int
	InitialHold          time.Duration
	FinalHold            time.Duration
	Logger               *slog.Logger
}

// OptionsFromConfig maps the timelapse settings onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	t := cfg.Timelapse
	return Options{
		OutputSize:           t.OutputSize,
		FrameRate:            t.FrameRate,
		BaseTransitionFrames: t.BaseTransitionFrames,
		Normalization:        t.Normalization,
		ZoomPadding:          t.ZoomPadding,
		InitialHold:          time.Duration(t.InitialHoldSeconds * float64(time.Second)),
		FinalHold:            time.Duration(t.FinalHoldSeconds * float64(time.Second)),
		Logger:               logger,
	}
}

func (o Options) withDefaults() Options {
	d := config.Default().Timelapse
	if o.OutputSize <= 0 {
		o.OutputSize = d.OutputSize
	}
	if o.FrameRate <= 0 {
		o.FrameRate = d.FrameRate
	}
	if o.BaseTransitionFrames <= 0 {
		o.BaseTransitionFrames = d.BaseTransitionFrames
	}
	if o.Normalization <= 0 {
		o.Normalization = d.Normalization
	}
	if o.ZoomPadding < 0 {
		o.ZoomPadding = 0
	}
	o.Logger = logging.NewComponentLogger(o.Logger, "compositor")
	return o
}

// Stats describes a finished render.
type Stats struct {
	// Emitted counts WriteFrame calls; Total counts frames including repeats.
	Emitted     int
	Total       int
	Transitions int
	Skipped     []string
	Windows     []raster.BoundingBox
}

// Duration is the playback length at fps.
func (s Stats) Duration(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(s.Total) * time.Second / time.Duration(fps)
}

type emitted struct {
	canvas *image.RGBA
	repeat int
}

// Render streams the animation of frames over region into sink. Frames whose
// rasters cannot be read are skipped with a warning; an error is returned
// when none remain.
func Render(ctx context.Context, frames []Frame, region raster.BoundingBox, opts Options, sink FrameWriter) (Stats, error) {
	if len(frames) == 0 {
		return Stats{}, services.Wrap(services.ErrValidation, "compositor", "render", "no frames to composite", nil)
	}
	if !region.Valid() {
		return Stats{}, services.Wrap(services.ErrValidation, "compositor", "render", "invalid region "+region.String(), nil)
	}
	if sink == nil {
		return Stats{}, services.Wrap(services.ErrConfiguration, "compositor", "render", "no frame sink", nil)
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bounds := image.Rect(0, 0, opts.OutputSize, opts.OutputSize)
	pool := make(chan *image.RGBA, 2)
	pool <- image.NewRGBA(bounds)
	pool <- image.NewRGBA(bounds)
	out := make(chan emitted, 1)

	p := &producer{
		opts:     opts,
		region:   region,
		pool:     pool,
		out:      out,
		renderer: newRenderer(opts.OutputSize),
		logger:   opts.Logger,
	}
	done := make(chan error, 1)
	go func() {
		defer close(out)
		done <- p.run(ctx, frames)
	}()

	var (
		sinkErr error
		stats   Stats
	)
	for frame := range out {
		if sinkErr == nil {
			if err := sink.WriteFrame(frame.canvas, frame.repeat); err != nil {
				sinkErr = err
				cancel()
			} else {
				stats.Emitted++
				stats.Total += frame.repeat
			}
		}
		pool <- frame.canvas
	}
	prodErr := <-done

	stats.Transitions = p.transitions
	stats.Skipped = p.skipped
	stats.Windows = p.windows
	switch {
	case sinkErr != nil:
		return stats, services.Wrap(services.ErrExternalTool, "compositor", "write frame", "", sinkErr)
	case prodErr != nil:
		return stats, prodErr
	}
	opts.Logger.Info("composited animation",
		logging.Int("frames", len(frames)-len(stats.Skipped)),
		logging.Int("emitted", stats.Emitted),
		logging.Int("total_frames", stats.Total),
		logging.Duration("playback", stats.Duration(opts.FrameRate)),
	)
	return stats, nil
}

// source is a decoded frame with its zoom window.
type source struct {
	name   string
	img    image.Image
	window raster.BoundingBox
}

type producer struct {
	opts     Options
	region   raster.BoundingBox
	pool     chan *image.RGBA
	out      chan<- emitted
	renderer *renderer
	logger   *slog.Logger

	transitions int
	skipped     []string
	windows     []raster.BoundingBox
}

func (p *producer) run(ctx context.Context, frames []Frame) error {
	sampler := logging.NewProgressSampler(10)
	full := raster.BoundingBox{X: 0, Y: 0, Size: p.region.Size}

	var prev *source
	for idx, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur, err := p.load(frame)
		if err != nil {
			if !errors.Is(err, services.ErrMalformedArtifact) {
				return err
			}
			logging.WarnWithContext(p.logger, "frame skipped", "frame_skipped",
				logging.Artifact(frame.ImageName),
				logging.Error(err),
				logging.String(logging.FieldImpact, "checkpoint missing from the animation"),
			)
			p.skipped = append(p.skipped, frame.ImageName)
			continue
		}
		p.windows = append(p.windows, cur.window)
		last := idx == len(frames)-1

		if prev == nil {
			hold := HoldFrames(p.opts.InitialHold, p.opts.FrameRate)
			if err := p.emit(ctx, hold, func(c *image.RGBA) {
				p.renderer.window(c, cur.img, p.region, full)
			}); err != nil {
				return err
			}
		} else {
			metric := MotionMetric(prev.window, cur.window, p.opts.Normalization)
			count := TransitionFrameCount(p.opts.BaseTransitionFrames, metric)
			p.logger.Debug("transition",
				logging.Artifact(cur.name),
				logging.Float64("motion", metric),
				logging.Int("frames", count+1),
				logging.String("from", prev.window.String()),
				logging.String("to", cur.window.String()),
			)
			for _, t := range Steps(count) {
				win := Interpolate(prev.window, cur.window, t)
				if err := p.emit(ctx, 1, func(c *image.RGBA) {
					p.renderer.crossfade(c, prev.img, cur.img, p.region, win, t)
				}); err != nil {
					return err
				}
			}
			p.transitions++
		}

		repeat := 1
		if last {
			repeat = HoldFrames(p.opts.FinalHold, p.opts.FrameRate)
		}
		if err := p.emit(ctx, repeat, func(c *image.RGBA) {
			p.renderer.window(c, cur.img, p.region, cur.window)
		}); err != nil {
			return err
		}
		prev = cur

		if sampler.ShouldLog("composite", idx+1, len(frames)) {
			p.logger.Info("compositing", logging.Int("done", idx+1), logging.Int("total", len(frames)))
		}
	}
	if prev == nil {
		return services.Wrap(services.ErrMalformedArtifact, "compositor", "render", "no readable frames", nil)
	}
	// A skipped final frame leaves the previous settled frame without its hold.
	if len(p.skipped) > 0 && p.skipped[len(p.skipped)-1] == frames[len(frames)-1].ImageName {
		hold := HoldFrames(p.opts.FinalHold, p.opts.FrameRate)
		return p.emit(ctx, hold, func(c *image.RGBA) {
			p.renderer.window(c, prev.img, p.region, prev.window)
		})
	}
	return nil
}

func (p *producer) load(frame Frame) (*source, error) {
	img, err := raster.Load(frame.ScreenshotPath)
	if err != nil {
		return nil, err
	}
	overlay, err := raster.Load(frame.OverlayPath)
	if err != nil {
		return nil, err
	}
	return &source{
		name:   frame.ImageName,
		img:    img,
		window: raster.TrackZoomInRegion(overlay, p.region, p.opts.ZoomPadding),
	}, nil
}

// emit renders into a pooled canvas and hands it to the sink goroutine.
func (p *producer) emit(ctx context.Context, repeat int, paint func(*image.RGBA)) error {
	var canvas *image.RGBA
	select {
	case <-ctx.Done():
		return ctx.Err()
	case canvas = <-p.pool:
	}
	paint(canvas)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.out <- emitted{canvas: canvas, repeat: repeat}:
		return nil
	}
}
