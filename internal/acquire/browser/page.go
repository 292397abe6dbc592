package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"cartolapse/internal/fileutil"
	"cartolapse/internal/logging"
	"cartolapse/internal/raster"
)

var errLoaderTimeout = errors.New("map loader still visible")

func (s *Session) openPage(ctx context.Context) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if s.opts.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Resolution,
		Height:            s.opts.Resolution,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(s.opts.MapURL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", s.opts.MapURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Debug("wait load failed", logging.Error(err))
	}
	return page, nil
}

// mapPage drives one loaded map page.
type mapPage struct {
	page   *rod.Page
	opts   Options
	logger *slog.Logger
}

// dismissDialogs closes whichever popups are present. Absent dialogs are fine.
func (p *mapPage) dismissDialogs(ctx context.Context) error {
	for _, d := range dialogs {
		has, el, err := p.page.Has(d.selector)
		if err != nil {
			return fmt.Errorf("query %s dialog: %w", d.name, err)
		}
		if !has {
			continue
		}
		if d.dismiss == "" {
			_, err = el.Eval(`function () { this.remove() }`)
		} else {
			_, err = el.Eval(`function (sel) { const btn = this.querySelector(sel); if (btn instanceof HTMLElement) btn.click() }`, d.dismiss)
		}
		if err != nil {
			return fmt.Errorf("dismiss %s dialog: %w", d.name, err)
		}
		if err := p.waitHidden(ctx, d.selector, p.opts.LoadTimeout); err != nil {
			return fmt.Errorf("%s dialog: %w", d.name, err)
		}
		p.logger.Debug("dialog dismissed", logging.String("dialog", d.name))
	}
	return nil
}

// loadSave uploads the save and polls the loader until it is hidden.
func (p *mapPage) loadSave(ctx context.Context, savePath string) error {
	abs, err := filepath.Abs(savePath)
	if err != nil {
		return fmt.Errorf("resolve save path: %w", err)
	}
	input, err := p.page.Element(saveInputSelector)
	if err != nil {
		return fmt.Errorf("find save input: %w", err)
	}
	if err := input.SetFiles([]string{abs}); err != nil {
		return fmt.Errorf("upload save: %w", err)
	}
	if err := sleep(ctx, p.opts.PollInterval); err != nil {
		return err
	}
	if err := p.waitHidden(ctx, loaderSelector, p.opts.LoadTimeout); err != nil {
		return err
	}
	if _, err := p.page.Element(downloadButtonSelector); err != nil {
		return fmt.Errorf("wait for loaded map: %w", err)
	}
	return sleep(ctx, p.opts.PollInterval)
}

// waitHidden polls until selector is absent or has no layout box.
func (p *mapPage) waitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Minute
	}
	deadline := time.Now().Add(timeout)
	for {
		res, err := p.page.Eval(`(sel) => {
			const el = document.querySelector(sel);
			return !el || (el.offsetWidth === 0 && el.offsetHeight === 0);
		}`, selector)
		if err != nil {
			return fmt.Errorf("poll %s: %w", selector, err)
		}
		if res.Value.Bool() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s: %s", errLoaderTimeout, timeout, selector)
		}
		if err := sleep(ctx, p.opts.PollInterval); err != nil {
			return err
		}
	}
}

// disableCircuitColors turns circuit coloring off. It reports whether the
// save must be reloaded for the change to apply.
func (p *mapPage) disableCircuitColors(ctx context.Context) (bool, error) {
	if err := p.click(ctx, optionsButtonSelector); err != nil {
		return false, err
	}
	if _, err := p.page.Element(optionsModalSelector); err != nil {
		return false, fmt.Errorf("wait for options: %w", err)
	}
	if err := p.click(ctx, statOptionsSelector); err != nil {
		return false, err
	}
	toggle, err := p.page.Element(circuitToggleSelector)
	if err != nil {
		return false, fmt.Errorf("find circuit toggle: %w", err)
	}
	res, err := toggle.Eval(`function () {
		if (this instanceof HTMLInputElement && this.checked) { this.click(); return true }
		return false
	}`)
	if err != nil {
		return false, fmt.Errorf("toggle circuit colors: %w", err)
	}
	if err := sleep(ctx, time.Second); err != nil {
		return false, err
	}
	if err := p.click(ctx, optionsCloseSelector); err != nil {
		return false, err
	}
	if err := p.waitHidden(ctx, optionsModalSelector, p.opts.LoadTimeout); err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// configureView hides player layers, isolates pure nodes, and zooms.
func (p *mapPage) configureView(ctx context.Context) error {
	for _, selector := range layerButtons {
		has, el, err := p.page.Has(selector)
		if err != nil {
			return fmt.Errorf("query %s: %w", selector, err)
		}
		if !has {
			continue
		}
		for i := 0; i < maxLayerToggleIterations; i++ {
			res, err := el.Eval(`function (cls) {
				if (!this.classList.contains(cls)) return false
				this.click()
				return true
			}`, activeLayerButtonClass)
			if err != nil {
				return fmt.Errorf("toggle layer %s: %w", selector, err)
			}
			if !res.Value.Bool() {
				break
			}
			if err := sleep(ctx, p.opts.PollInterval); err != nil {
				return err
			}
		}
	}
	if err := p.click(ctx, showPureNodesSelector); err != nil {
		return err
	}
	if err := p.click(ctx, togglePureNodesSelector); err != nil {
		return err
	}
	if _, err := p.page.Eval(`(hash) => { window.location.hash = hash }`, zoomHash(p.opts.ZoomLevel)); err != nil {
		return fmt.Errorf("set zoom: %w", err)
	}
	return sleep(ctx, time.Second)
}

// click retries a button click a few times while the UI settles.
func (p *mapPage) click(ctx context.Context, selector string) error {
	const attempts = 5
	var lastErr error
	for i := 0; i < attempts; i++ {
		el, err := p.page.Timeout(10 * time.Second).Element(selector)
		if err == nil {
			_, err = el.Eval(`function () { if (this instanceof HTMLElement) this.click() }`)
		}
		if err == nil {
			return sleep(ctx, p.opts.PollInterval)
		}
		lastErr = err
		if err := sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
	return fmt.Errorf("click %s: %w", selector, lastErr)
}

// captureScreenshot clips the map element and writes it atomically.
func (p *mapPage) captureScreenshot(path string) (int, int, error) {
	res, err := p.page.Eval(`(sel) => {
		const r = document.querySelector(sel).getBoundingClientRect()
		return { x: r.x, y: r.y, width: r.width, height: r.height }
	}`, mapSelector)
	if err != nil {
		return 0, 0, fmt.Errorf("measure map: %w", err)
	}
	clip := &proto.PageViewport{
		X:      res.Value.Get("x").Num(),
		Y:      res.Value.Get("y").Num(),
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
		Scale:  1,
	}
	if clip.Width < 1 || clip.Height < 1 {
		return 0, 0, fmt.Errorf("map element has no size")
	}
	data, err := p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip:   clip,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("capture: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return 0, 0, err
	}
	return int(clip.Width), int(clip.Height), nil
}

// captureOverlay exports the overlay canvas and aligns it to the screenshot.
func (p *mapPage) captureOverlay(path string, width, height int) error {
	res, err := p.page.Eval(`(canvasSel, mapSel) => {
		const canvas = document.querySelector(canvasSel)
		const map = document.querySelector(mapSel)
		const c = canvas.getBoundingClientRect()
		const m = map.getBoundingClientRect()
		return { data: canvas.toDataURL("image/png"), dx: c.x - m.x, dy: c.y - m.y }
	}`, overlayCanvasSelector, mapSelector)
	if err != nil {
		return fmt.Errorf("export canvas: %w", err)
	}
	payload, err := decodeDataURL(res.Value.Get("data").Str())
	if err != nil {
		return err
	}
	canvas, err := raster.Decode(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	offsetX := int(res.Value.Get("dx").Num())
	offsetY := int(res.Value.Get("dy").Num())
	return raster.Save(path, alignOverlay(canvas, width, height, offsetX, offsetY))
}

// zoomHash is the map's location hash for zoom level z centered at the origin.
func zoomHash(z float64) string {
	return strconv.FormatFloat(z, 'f', -1, 64) + ";0;0|gameLayer|"
}
