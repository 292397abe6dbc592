package timelapse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cartolapse/internal/acquire"
	"cartolapse/internal/acquire/browser"
	"cartolapse/internal/catalog"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/config"
	"cartolapse/internal/encoder"
	"cartolapse/internal/logging"
	"cartolapse/internal/preflight"
	"cartolapse/internal/services"
)

type runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	runID     string
	logPath   string
	factory   acquire.SessionFactory
	preflight func(context.Context, *config.Config) []preflight.Result
	archiver  encoder.Archiver
	layout    checkpoint.Layout
	store     *catalog.Store
}

// Run executes the pipeline once. It returns an error for fatal conditions:
// a held lock, failed preflight, no session to render, an undetectable
// region, an encoder failure, or an acquisition phase that left no frames.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (Report, error) {
	if cfg == nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "timelapse", "run", "config is required", nil)
	}
	r := &runner{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "timelapse"),
		preflight: preflight.RunAll,
		layout: checkpoint.Layout{
			ScreenshotsDir: cfg.ScreenshotsDir(),
			OverlaysDir:    cfg.OverlaysDir(),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if strings.TrimSpace(r.runID) == "" {
		r.runID = uuid.NewString()
	}
	if r.factory == nil {
		r.factory = browser.NewFactory(browser.OptionsFromConfig(cfg, logger))
	}
	if r.archiver == nil {
		r.archiver = encoder.DraptoArchiver{Logger: logger}
	}
	ctx = services.WithRunID(ctx, r.runID)
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (Report, error) {
	started := time.Now()
	report := Report{RunID: r.runID}

	if err := os.MkdirAll(r.cfg.Paths.OutputDir, 0o755); err != nil {
		return report, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(r.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return report, services.Wrap(services.ErrConfiguration, "timelapse", "lock",
			"another cartolapse run is already using "+r.cfg.Paths.OutputDir, nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	if err := r.cfg.EnsureDirectories(); err != nil {
		return report, err
	}
	if err := preflight.Summarize(r.preflight(ctx, r.cfg)); err != nil {
		return report, services.Wrap(services.ErrConfiguration, "timelapse", "preflight", "", err)
	}

	selection, err := r.discover(ctx, &report)
	if err != nil {
		return report, err
	}

	store, err := catalog.Open(r.cfg.CatalogPath())
	if err != nil {
		return report, err
	}
	defer store.Close()
	r.store = store
	if err := store.Sync(ctx, selection.Artifacts); err != nil {
		return report, err
	}
	if err := store.BeginRun(ctx, r.runID, selection.Session, started); err != nil {
		return report, err
	}

	runErr := r.process(ctx, selection, &report)
	report.Elapsed = time.Since(started)
	r.finishRun(report, runErr)
	logging.CleanupOldLogs(r.logger, r.cfg.Paths.LogDir, r.cfg.Logging.RetentionDays, r.logPath)
	if runErr != nil {
		return report, runErr
	}

	r.logger.Info("timelapse complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("session", report.Session),
		logging.Int("frames", report.Frames),
		logging.Int("acquired", report.Acquired),
		logging.Int("failed", len(report.Failures)),
		logging.String("output", report.Output),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// discover scans the saves directory, importing from the game first when it
// holds no qualifying saves, and selects the session to render.
func (r *runner) discover(ctx context.Context, report *Report) (checkpoint.Selection, error) {
	scanner := checkpoint.Scanner{SavesDir: r.cfg.Paths.SavesDir, Layout: r.layout, Logger: r.logger}
	found, err := scanner.Scan(ctx)
	if err != nil {
		return checkpoint.Selection{}, err
	}
	if len(found.Artifacts) == 0 {
		imported, err := r.importSaves()
		if err != nil {
			return checkpoint.Selection{}, err
		}
		report.Imported = imported
		if imported > 0 {
			if found, err = scanner.Scan(ctx); err != nil {
				return checkpoint.Selection{}, err
			}
		}
	}
	report.Discovered = len(found.Artifacts)
	report.Skipped = len(found.Skipped)

	selection, err := checkpoint.SelectSession(found.Artifacts, r.cfg.Session.Name)
	if err != nil {
		return checkpoint.Selection{}, err
	}
	report.Session = selection.Session
	report.SessionReason = selection.Reason
	candidates := make([]string, 0, len(selection.Candidates))
	for _, c := range selection.Candidates {
		candidates = append(candidates, fmt.Sprintf("%s(%d)", c.Name, c.Checkpoints))
	}
	r.logger.Info("session selected",
		logging.String(logging.FieldEventType, "session_selected"),
		logging.String("session", selection.Session),
		logging.String("reason", selection.Reason),
		logging.Int("checkpoints", len(selection.Artifacts)),
		logging.String("candidates", strings.Join(candidates, ", ")),
	)
	return selection, nil
}

func (r *runner) importSaves() (int, error) {
	src := strings.TrimSpace(r.cfg.Paths.GameSavesDir)
	if src == "" {
		home, _ := os.UserHomeDir()
		detected, err := checkpoint.DetectGameSaves(checkpoint.Platform{GOOS: runtime.GOOS, Home: home, Getenv: os.Getenv})
		if err != nil {
			r.logger.Debug("no game save directory to import from", logging.Error(err))
			return 0, nil
		}
		src = detected
	}
	result, err := checkpoint.Import(src, r.cfg.Paths.SavesDir, false, r.logger)
	if err != nil {
		return 0, err
	}
	return len(result.Copied), nil
}

// process acquires, composites, and encodes the selected session.
func (r *runner) process(ctx context.Context, selection checkpoint.Selection, report *Report) error {
	artifacts, err := r.acquire(ctx, selection.Artifacts, report)
	if err != nil {
		return err
	}
	frames := framesOf(artifacts, r.layout)
	report.Frames = len(frames)
	if len(frames) == 0 {
		return errors.Join(
			services.Wrap(services.ErrAcquisition, "timelapse", "frames", "no checkpoint has both rasters", nil),
			report.AcquisitionErr,
		)
	}
	if report.AcquisitionErr != nil {
		logging.WarnWithContext(r.logger, "rendering without failed checkpoints", "acquisition_partial",
			logging.Error(report.AcquisitionErr),
			logging.Int("frames", len(frames)),
			logging.String(logging.FieldImpact, "the animation skips the failed checkpoints"),
			logging.String(logging.FieldErrorHint, "rerun to retry the failed checkpoints"),
		)
	}
	return r.render(ctx, selection.Session, frames, report)
}

func (r *runner) finishRun(report Report, runErr error) {
	finished := time.Now()
	run := catalog.Run{
		ID:         r.runID,
		FinishedAt: &finished,
		Frames:     report.Frames,
		Failures:   len(report.Failures),
		OutputPath: report.Output,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.store.FinishRun(context.Background(), run); err != nil {
		r.logger.Warn("failed to record run", logging.Error(err))
	}
}
