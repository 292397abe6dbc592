package timelapse_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"cartolapse/internal/acquire"
	"cartolapse/internal/catalog"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/config"
	"cartolapse/internal/logging"
	"cartolapse/internal/preflight"
	"cartolapse/internal/raster"
	"cartolapse/internal/scheduler"
	"cartolapse/internal/services"
	"cartolapse/internal/testsupport"
	"cartolapse/internal/timelapse"
)

const rasterSize = 64

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
)

// fakeFactory renders a solid screenshot per artifact. Artifacts listed in
// failing never succeed.
type fakeFactory struct {
	layout  checkpoint.Layout
	colors  map[string]color.NRGBA
	failing map[string]bool

	mu       sync.Mutex
	opened   int
	attempts map[string]int
}

func newFakeFactory(cfg *config.Config) *fakeFactory {
	return &fakeFactory{
		layout:   checkpoint.Layout{ScreenshotsDir: cfg.ScreenshotsDir(), OverlaysDir: cfg.OverlaysDir()},
		colors:   map[string]color.NRGBA{},
		failing:  map[string]bool{},
		attempts: map[string]int{},
	}
}

func (f *fakeFactory) Open(context.Context, int) (acquire.Session, error) {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &fakeSession{factory: f}, nil
}

type fakeSession struct {
	factory *fakeFactory
}

func (s *fakeSession) Acquire(_ context.Context, artifact checkpoint.Artifact) error {
	f := s.factory
	f.mu.Lock()
	f.attempts[artifact.ImageName]++
	fill, known := f.colors[artifact.ImageName]
	fail := f.failing[artifact.ImageName]
	f.mu.Unlock()

	if fail {
		return services.Wrap(services.ErrAcquisition, "fake", "acquire", "map never loaded", nil)
	}
	if !known {
		return fmt.Errorf("unexpected artifact %s", artifact.ImageName)
	}
	screenshot := testsupport.MapScreenshot(rasterSize, fill)
	overlay := testsupport.Overlay(rasterSize, image.Rect(24, 24, 40, 40))
	if err := raster.Save(f.layout.Screenshot(artifact), screenshot); err != nil {
		return err
	}
	return raster.Save(f.layout.Overlay(artifact), overlay)
}

func (s *fakeSession) Close() error { return nil }

func noPreflight(context.Context, *config.Config) []preflight.Result { return nil }

// writeSession writes n saves of session Meadow one hour apart and returns
// their artifacts in chronological order.
func writeSession(t *testing.T, cfg *config.Config, n int) []checkpoint.Artifact {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	artifacts := make([]checkpoint.Artifact, 0, n)
	for i := 0; i < n; i++ {
		mod := base.Add(time.Duration(i) * time.Hour)
		path := testsupport.WriteSave(t, cfg.Paths.SavesDir, fmt.Sprintf("Meadow_120000-%06d.sav", i+1), mod)
		artifacts = append(artifacts, checkpoint.NewArtifact(path, "Meadow", mod))
	}
	return artifacts
}

func TestRunRendersAroundPermanentFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2), testsupport.WithMaxRetries(1))
	artifacts := writeSession(t, cfg, 3)

	factory := newFakeFactory(cfg)
	factory.colors[artifacts[0].ImageName] = red
	factory.colors[artifacts[2].ImageName] = blue
	factory.failing[artifacts[1].ImageName] = true

	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
		timelapse.WithRunID("run-1"),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var aggregate *scheduler.AggregateAcquisitionFailure
	if !errors.As(report.AcquisitionErr, &aggregate) {
		t.Fatalf("expected aggregate failure on report, got %v", report.AcquisitionErr)
	}
	if aggregate.Count != 1 || aggregate.Identities[0] != artifacts[1].ImageName {
		t.Fatalf("unexpected aggregate: %+v", aggregate)
	}
	if report.Acquired != 2 || len(report.Failures) != 1 {
		t.Fatalf("expected 2 acquired and 1 failure, got %d and %d", report.Acquired, len(report.Failures))
	}
	if got := factory.attempts[artifacts[1].ImageName]; got != 2 {
		t.Fatalf("expected failing checkpoint to be tried twice, got %d", got)
	}
	if report.Frames != 2 || len(report.Stats.Windows) != 2 {
		t.Fatalf("expected compositor to receive 2 frames, got %d (%d windows)", report.Frames, len(report.Stats.Windows))
	}
	if report.Session != "Meadow" {
		t.Fatalf("unexpected session %q", report.Session)
	}
	// Sea block at 8, void block ending at 55, padding 4.
	if want := (raster.BoundingBox{X: 4, Y: 4, Size: 55}); report.Region != want {
		t.Fatalf("unexpected region %v, want %v", report.Region, want)
	}

	anim := decodeGIF(t, report.Output)
	if first := centerColor(anim.Image[0]); first != red {
		t.Fatalf("expected animation to open on the earliest checkpoint, got %v", first)
	}
	if last := centerColor(anim.Image[len(anim.Image)-1]); last != blue {
		t.Fatalf("expected animation to end on the latest checkpoint, got %v", last)
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	failed, err := store.Get(context.Background(), artifacts[1].ImageName)
	if err != nil {
		t.Fatalf("get failed entry: %v", err)
	}
	if failed.Status != catalog.StatusFailed || failed.Attempts != 2 {
		t.Fatalf("unexpected failed entry: %+v", failed)
	}
	acquired, err := store.Get(context.Background(), artifacts[0].ImageName)
	if err != nil {
		t.Fatalf("get acquired entry: %v", err)
	}
	if acquired.Status != catalog.StatusAcquired {
		t.Fatalf("unexpected acquired entry: %+v", acquired)
	}
	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("last run: %v %v", run, err)
	}
	if run.ID != "run-1" || run.Frames != 2 || run.Failures != 1 || run.OutputPath != report.Output {
		t.Fatalf("unexpected run record: %+v", run)
	}
}

func TestRunSkipsAcquiredCheckpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := writeSession(t, cfg, 2)
	cacheRasters(t, cfg, artifacts, green, blue)

	factory := newFakeFactory(cfg)
	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if factory.opened != 0 {
		t.Fatalf("expected no sessions for cached rasters, opened %d", factory.opened)
	}
	if report.Cached != 2 || report.Acquired != 0 || report.Frames != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RunID == "" {
		t.Fatal("expected generated run id")
	}
}

func TestRunFailsWhenNoFramesRemain(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(0))
	artifacts := writeSession(t, cfg, 2)
	factory := newFakeFactory(cfg)
	for _, a := range artifacts {
		factory.failing[a.ImageName] = true
	}

	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
	)
	if err == nil {
		t.Fatal("expected error when every acquisition fails")
	}
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	var aggregate *scheduler.AggregateAcquisitionFailure
	if !errors.As(err, &aggregate) || aggregate.Count != 2 {
		t.Fatalf("expected aggregate of 2 in error, got %v", err)
	}
	if report.Output != "" {
		t.Fatalf("expected no output, got %q", report.Output)
	}
	if _, statErr := os.Stat(cfg.AnimationPath("Meadow")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no animation file, stat err %v", statErr)
	}
}

func TestRunDumpsFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameDump())
	artifacts := writeSession(t, cfg, 2)
	factory := newFakeFactory(cfg)
	factory.colors[artifacts[0].ImageName] = red
	factory.colors[artifacts[1].ImageName] = green

	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	dumped, err := filepath.Glob(filepath.Join(report.FramesDir, "*.png"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(dumped) != report.Stats.Total || report.FramesDumped != report.Stats.Total {
		t.Fatalf("expected %d dumped frames, got %d on disk and %d reported", report.Stats.Total, len(dumped), report.FramesDumped)
	}
}

// cacheRasters writes screenshot and overlay pairs for artifacts so the run
// treats them as already acquired.
func cacheRasters(t *testing.T, cfg *config.Config, artifacts []checkpoint.Artifact, fills ...color.NRGBA) checkpoint.Layout {
	t.Helper()
	layout := checkpoint.Layout{ScreenshotsDir: cfg.ScreenshotsDir(), OverlaysDir: cfg.OverlaysDir()}
	for i, fill := range fills {
		testsupport.WriteRasters(t, layout, artifacts[i],
			testsupport.MapScreenshot(rasterSize, fill),
			testsupport.Overlay(rasterSize, image.Rect(20, 20, 44, 44)))
	}
	return layout
}

func TestRunSkipsUnreadableReferenceScreenshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := writeSession(t, cfg, 3)
	layout := cacheRasters(t, cfg, artifacts, red, green, blue)
	if err := os.WriteFile(layout.Screenshot(artifacts[0]), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("corrupt screenshot: %v", err)
	}

	factory := newFakeFactory(cfg)
	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if factory.opened != 0 {
		t.Fatalf("expected cached rasters to be reused, opened %d sessions", factory.opened)
	}
	if report.Frames != 2 {
		t.Fatalf("expected 2 frames rendered, got %d", report.Frames)
	}
	if len(report.SkippedFrames) != 1 || report.SkippedFrames[0] != artifacts[0].ImageName {
		t.Fatalf("expected %s skipped, got %v", artifacts[0].ImageName, report.SkippedFrames)
	}
	if want := (raster.BoundingBox{X: 4, Y: 4, Size: 55}); report.Region != want {
		t.Fatalf("unexpected region %v, want %v", report.Region, want)
	}
	anim := decodeGIF(t, report.Output)
	if first := centerColor(anim.Image[0]); first != green {
		t.Fatalf("expected animation to open on the first readable checkpoint, got %v", first)
	}
}

func TestRunAbortsWhenRegionNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := writeSession(t, cfg, 2)
	layout := cacheRasters(t, cfg, artifacts, red, blue)

	sealess := image.NewNRGBA(image.Rect(0, 0, rasterSize, rasterSize))
	for y := 0; y < rasterSize; y++ {
		for x := 0; x < rasterSize; x++ {
			sealess.SetNRGBA(x, y, green)
		}
	}
	if err := raster.Save(layout.Screenshot(artifacts[0]), sealess); err != nil {
		t.Fatalf("save screenshot: %v", err)
	}

	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(newFakeFactory(cfg)),
		timelapse.WithPreflight(noPreflight),
		timelapse.WithRunID("run-region"),
	)
	if !errors.Is(err, services.ErrRegionNotFound) {
		t.Fatalf("expected region not found, got %v", err)
	}
	if report.Output != "" {
		t.Fatalf("expected no output, got %q", report.Output)
	}
	output := cfg.AnimationPath(report.Session)
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no animation file, stat err %v", statErr)
	}
	partials, err := filepath.Glob(filepath.Join(filepath.Dir(output), "*.partial*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(partials) != 0 {
		t.Fatalf("expected no partial output, found %v", partials)
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("last run: %v %v", run, err)
	}
	if run.ID != "run-region" || run.FinishedAt == nil || !strings.Contains(run.Error, services.ErrRegionNotFound.Error()) {
		t.Fatalf("expected run record to carry the region error, got %+v", run)
	}
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeSession(t, cfg, 1)
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: %v %v", ok, err)
	}
	defer held.Unlock()

	_, err = timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(newFakeFactory(cfg)),
		timelapse.WithPreflight(noPreflight),
	)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestRunReportsPreflightFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failing := func(context.Context, *config.Config) []preflight.Result {
		return []preflight.Result{{Name: "FFmpeg", Detail: "binary \"ffmpeg\" not found"}}
	}
	_, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(newFakeFactory(cfg)),
		timelapse.WithPreflight(failing),
	)
	if err == nil || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected preflight failure, got %v", err)
	}
}

func TestRunWithoutSavesFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.GameSavesDir = t.TempDir()
	_, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(newFakeFactory(cfg)),
		timelapse.WithPreflight(noPreflight),
	)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty saves, got %v", err)
	}
}

func TestRunImportsSavesWhenEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	game := t.TempDir()
	cfg.Paths.GameSavesDir = game
	mod := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testsupport.WriteSave(t, game, "Meadow_120000-000001.sav", mod)
	testsupport.WriteSave(t, game, "Meadow_autosave_0.sav", mod)

	factory := newFakeFactory(cfg)
	imported := checkpoint.NewArtifact(filepath.Join(cfg.Paths.SavesDir, "Meadow_120000-000001.sav"), "Meadow", mod)
	factory.colors[imported.ImageName] = red

	report, err := timelapse.Run(context.Background(), cfg, logging.NewNop(),
		timelapse.WithSessionFactory(factory),
		timelapse.WithPreflight(noPreflight),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Imported != 1 || report.Frames != 1 {
		t.Fatalf("expected one imported frame, got %+v", report)
	}
}

func decodeGIF(t *testing.T, path string) *gif.GIF {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open animation: %v", err)
	}
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode animation: %v", err)
	}
	if len(anim.Image) == 0 {
		t.Fatal("animation has no frames")
	}
	return anim
}

func centerColor(img image.Image) color.NRGBA {
	b := img.Bounds()
	return color.NRGBAModel.Convert(img.At((b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)).(color.NRGBA)
}
