package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"cartolapse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Defaults favor fast tests: GIF output without transcodes, a small output
// size, short holds, and one retry.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SavesDir = filepath.Join(base, "saves")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "output", "logs")
	cfgVal.Acquisition.MaxRetries = 1
	cfgVal.Acquisition.JobTimeoutSeconds = 30
	cfgVal.Timelapse.MapPadding = 4
	cfgVal.Timelapse.ZoomPadding = 2
	cfgVal.Timelapse.OutputSize = 32
	cfgVal.Timelapse.FrameRate = 10
	cfgVal.Timelapse.BaseTransitionFrames = 2
	cfgVal.Timelapse.InitialHoldSeconds = 0.2
	cfgVal.Timelapse.FinalHoldSeconds = 0.2
	cfgVal.Encoder.Format = "gif"
	cfgVal.Encoder.TranscodeGIF = false
	cfgVal.Encoder.ArchiveAV1 = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkers sets the acquisition worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Acquisition.Workers = n
	}
}

// WithMaxRetries sets the acquisition retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Acquisition.MaxRetries = n
	}
}

// WithSession selects the session to render.
func WithSession(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.Name = name
	}
}

// WithFrameDump enables dumping every composited frame.
func WithFrameDump() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timelapse.DumpFrames = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SavesDir)
}
