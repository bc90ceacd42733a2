package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/stupside/shotpdf/internal/action"
	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/browser"
)

// rodRenderer renders local pages in a single rod-managed tab.
type rodRenderer struct {
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	delay   time.Duration
	timeout time.Duration
}

// rodOpener returns an OpenFunc that launches Chrome through rod with the
// same viewport and scale factor as the live capture.
func rodOpener(cfg app.BrowserConfig, fb app.FallbackConfig) OpenFunc {
	return func(ctx context.Context) (Renderer, error) {
		execPath, err := browser.ResolveExecPath(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", browser.ErrLaunch, err)
		}
		// rod downloads Chromium on its own when given no binary.
		if execPath == "" {
			return nil, fmt.Errorf("%w: no Chrome binary found and browser.download is off", browser.ErrLaunch)
		}

		l := launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox).
			Set("hide-scrollbars").
			Set("disable-gpu").
			Bin(execPath)

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: rod launch: %w", browser.ErrLaunch, err)
		}

		b := rod.New().ControlURL(u).Context(ctx)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("%w: rod connect: %w", browser.ErrLaunch, err)
		}

		p, err := b.Page(proto.TargetCreateTarget{})
		if err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("%w: opening page: %w", browser.ErrLaunch, err)
		}

		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.Width,
			Height:            cfg.Height,
			DeviceScaleFactor: cfg.Scale,
		}); err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("%w: setting viewport: %w", browser.ErrLaunch, err)
		}

		slog.DebugContext(ctx, "render session opened", "exec", execPath)

		return &rodRenderer{lnch: l, browser: b, page: p, delay: fb.RenderDelay, timeout: fb.RenderTimeout}, nil
	}
}

// Render loads fileURL and returns a full-page PNG. Subresources still
// pending after the render timeout are given up on and the page is captured
// as it stands.
func (r *rodRenderer) Render(ctx context.Context, fileURL string) ([]byte, error) {
	loadCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.page.Context(loadCtx).Navigate(fileURL); err != nil {
		return nil, fmt.Errorf("loading %s: %w", fileURL, err)
	}
	if err := r.page.Context(loadCtx).WaitLoad(); err != nil {
		if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("waiting for load: %w", err)
		}
		slog.WarnContext(ctx, "fragment did not finish loading, capturing anyway", "timeout", r.timeout)
	}

	p := r.page.Context(ctx)

	// Layout and web fonts.
	if err := action.Settle(ctx, r.delay); err != nil {
		return nil, err
	}

	buf, err := p.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down and removes its profile directory.
func (r *rodRenderer) Close() error {
	err := r.browser.Close()
	r.lnch.Kill()
	r.lnch.Cleanup()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
