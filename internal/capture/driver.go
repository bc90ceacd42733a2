// Package capture screenshots the elements matching a selector on a live
// page using headless Chrome.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/stupside/shotpdf/internal/action"
	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/browser"
	"github.com/stupside/shotpdf/internal/shot"
)

// Driver captures element screenshots from a live page.
type Driver struct {
	browser app.BrowserConfig
	capture app.CaptureConfig
}

// NewDriver creates a Driver from browser and capture settings.
func NewDriver(browserCfg app.BrowserConfig, captureCfg app.CaptureConfig) *Driver {
	return &Driver{
		browser: browserCfg,
		capture: captureCfg,
	}
}

// Capture runs a single session: navigate, settle, query, and screenshot each
// match in document order. Zero matches is not an error; the batch then
// carries a whole-viewport capture for diagnosis. Elements that fail are
// skipped without leaving a gap.
func (d *Driver) Capture(ctx context.Context, target shot.Target) (*shot.Batch, error) {
	session, err := browser.Open(ctx, d.browser)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	slog.InfoContext(ctx, "navigating to target", "url", target.URL)
	if err := session.Navigate(target.URL, d.capture.NavTimeout, d.capture.IdleTimeout); err != nil {
		return nil, err
	}

	tab := session.Context()

	if err := action.Settle(tab, d.capture.SettleDelay); err != nil {
		return nil, fmt.Errorf("settling page: %w", err)
	}

	var nodes []*cdp.Node
	if err := action.Bounded(tab, d.capture.ElementTimeout,
		chromedp.Nodes(target.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	); err != nil {
		return nil, fmt.Errorf("querying %q: %w", target.Selector, err)
	}

	slog.InfoContext(ctx, "elements found", "selector", target.Selector, "count", len(nodes))

	if len(nodes) == 0 {
		session.Snapshot("no_match")
		var full []byte
		if err := chromedp.Run(tab, chromedp.CaptureScreenshot(&full)); err != nil {
			slog.WarnContext(ctx, "diagnostic full-page capture failed", "error", err)
		}
		return &shot.Batch{FullPage: full}, nil
	}

	batch := &shot.Batch{}
	for i, n := range nodes {
		buf, err := d.element(tab, n)
		if err != nil {
			slog.WarnContext(ctx, "skipping element", "position", i+1, "error", err)
			continue
		}
		batch.Images = append(batch.Images, buf)
		slog.DebugContext(ctx, "element captured", "position", i+1, "bytes", len(buf))
	}

	return batch, nil
}

// element rasterizes one node's bounding box at device pixel density.
func (d *Driver) element(ctx context.Context, n *cdp.Node) ([]byte, error) {
	var box *dom.BoxModel
	if err := chromedp.Run(ctx, action.BoxModel(n.NodeID, &box)); err != nil {
		return nil, fmt.Errorf("no box model: %w", err)
	}
	if box.Width == 0 || box.Height == 0 {
		return nil, errors.New("element has zero size")
	}

	var buf []byte
	if err := action.Bounded(ctx, d.capture.ElementTimeout,
		action.ScrollIntoView(n.NodeID),
		chromedp.Sleep(d.capture.ElementDelay),
		chromedp.Screenshot([]cdp.NodeID{n.NodeID}, &buf, chromedp.ByNodeID),
	); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}
