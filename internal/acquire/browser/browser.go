package browser

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"cartolapse/internal/acquire"
	"cartolapse/internal/checkpoint"
	"cartolapse/internal/config"
	"cartolapse/internal/deps"
	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

// Options configures the browser adapter.
type Options struct {
	MapURL     string
	Resolution int
	ZoomLevel  float64
	Headless   bool
	Stealth    bool
	// BrowserBin is the Chromium executable; empty searches PATH.
	BrowserBin string
	// RemoteURL connects to an existing DevTools endpoint instead of launching.
	RemoteURL    string
	LoadTimeout  time.Duration
	Settle       time.Duration
	PollInterval time.Duration
	Layout       checkpoint.Layout
	Logger       *slog.Logger
}

// OptionsFromConfig maps the acquisition settings onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	a := cfg.Acquisition
	return Options{
		MapURL:       a.MapURL,
		Resolution:   a.Resolution,
		ZoomLevel:    a.ZoomLevel,
		Headless:     a.Headless,
		Stealth:      a.Stealth,
		BrowserBin:   deps.ResolveBrowser(a.BrowserBin),
		RemoteURL:    a.RemoteURL,
		LoadTimeout:  time.Duration(a.LoadTimeoutSeconds) * time.Second,
		Settle:       time.Duration(a.SettleSeconds) * time.Second,
		PollInterval: 500 * time.Millisecond,
		Layout: checkpoint.Layout{
			ScreenshotsDir: cfg.ScreenshotsDir(),
			OverlaysDir:    cfg.OverlaysDir(),
		},
		Logger: logger,
	}
}

// Factory launches one browser per worker.
type Factory struct {
	opts Options
}

// NewFactory returns a session factory for opts.
func NewFactory(opts Options) *Factory {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Factory{opts: opts}
}

// Open launches (or connects to) a browser for worker.
func (f *Factory) Open(ctx context.Context, worker int) (acquire.Session, error) {
	logger := logging.NewComponentLogger(f.opts.Logger, "browser").With(logging.Worker(worker))

	var (
		controlURL string
		lnch       *launcher.Launcher
	)
	if remote := strings.TrimSpace(f.opts.RemoteURL); remote != "" {
		controlURL = remote
		logger.Info("connecting to remote browser", logging.String("url", remote))
	} else {
		lnch = launcher.New().Context(ctx).Headless(f.opts.Headless)
		if f.opts.BrowserBin != "" {
			lnch = lnch.Bin(f.opts.BrowserBin)
		}
		lnch = lnch.Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, services.Wrap(services.ErrAcquisition, "browser", "launch", f.opts.BrowserBin, err)
		}
		controlURL = u
		logger.Info("browser launched", logging.Bool("headless", f.opts.Headless))
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, services.Wrap(services.ErrAcquisition, "browser", "connect", controlURL, err)
	}
	return &Session{browser: b, launcher: lnch, opts: f.opts, logger: logger}, nil
}

var _ acquire.SessionFactory = (*Factory)(nil)

// Session is one worker's browser.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *slog.Logger
}

// Acquire renders artifact on a fresh page and writes both rasters.
func (s *Session) Acquire(ctx context.Context, artifact checkpoint.Artifact) error {
	logger := s.logger.With(logging.Artifact(artifact.ImageName))
	started := time.Now()

	page, err := s.openPage(ctx)
	if err != nil {
		return s.fail("open page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug("page close failed", logging.Error(err))
		}
	}()
	p := &mapPage{page: page.Context(ctx), opts: s.opts, logger: logger}

	if err := p.dismissDialogs(ctx); err != nil {
		return s.fail("dismiss dialogs", err)
	}
	if err := p.loadSave(ctx, artifact.SourcePath); err != nil {
		return s.fail("load save", err)
	}
	reload, err := p.disableCircuitColors(ctx)
	if err != nil {
		return s.fail("map settings", err)
	}
	if reload {
		logger.Debug("reloading save after settings change")
		if err := p.loadSave(ctx, artifact.SourcePath); err != nil {
			return s.fail("reload save", err)
		}
	}
	if err := p.configureView(ctx); err != nil {
		return s.fail("configure view", err)
	}
	if err := sleep(ctx, s.opts.Settle); err != nil {
		return s.fail("settle", err)
	}
	width, height, err := p.captureScreenshot(s.opts.Layout.Screenshot(artifact))
	if err != nil {
		return s.fail("screenshot", err)
	}
	if err := p.captureOverlay(s.opts.Layout.Overlay(artifact), width, height); err != nil {
		return s.fail("overlay", err)
	}
	logger.Debug("captured", logging.Duration("elapsed", time.Since(started)), logging.Int("width", width), logging.Int("height", height))
	return nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return err
}

func (s *Session) fail(op string, err error) error {
	return services.Wrap(services.ErrAcquisition, "browser", op, "", err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
