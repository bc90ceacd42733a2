package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/stupside/shotpdf/internal/app"
)

// ResolveExecPath picks the Chrome binary: the configured path, then one
// found on the system, then (if allowed) a downloaded Chromium. An empty
// result leaves the choice to chromedp's own lookup.
func ResolveExecPath(cfg app.BrowserConfig) (string, error) {
	if cfg.ChromePath != "" {
		return cfg.ChromePath, nil
	}
	if p, ok := launcher.LookPath(); ok {
		return p, nil
	}
	if cfg.Download {
		p, err := launcher.NewBrowser().Get()
		if err != nil {
			return "", fmt.Errorf("downloading browser: %w", err)
		}
		return p, nil
	}
	return "", nil
}

// allocatorOpts returns chromedp exec-allocator options for an isolated
// headless Chrome. Window size and UA come from the profile.
func allocatorOpts(cfg app.BrowserConfig, profile *Profile, execPath string) []chromedp.ExecAllocatorOption {
	var headlessVal string
	if cfg.Headless {
		headlessVal = "new"
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("headless", headlessVal),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),

		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),

		chromedp.WindowSize(profile.Width, profile.Height),

		chromedp.UserAgent(profile.UserAgent),
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// emulate pins the tab to the profile: device metrics with the scale factor
// so rasters come out at device pixel density, and the UA override so the
// Accept-Language header matches.
func emulate(profile *Profile) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(
			int64(profile.Width), int64(profile.Height), profile.Scale, false,
		).Do(ctx); err != nil {
			return fmt.Errorf("device metrics: %w", err)
		}

		ua := emulation.SetUserAgentOverride(profile.UserAgent).
			WithAcceptLanguage(profile.AcceptLanguage)
		if err := ua.Do(ctx); err != nil {
			return fmt.Errorf("user agent: %w", err)
		}
		return nil
	}
}
