package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/stupside/shotpdf/internal/app"
)

// Session owns the chromedp lifecycle for a single capture attempt.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	events      *lifecycle
	snapshotDir string
}

// Open starts an isolated browser with its own user-data dir and prepares one
// tab for the profile. Any failure here wraps ErrLaunch.
func Open(ctx context.Context, cfg app.BrowserConfig) (*Session, error) {
	profile := NewProfile(cfg)

	execPath, err := ResolveExecPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(cfg, profile, execPath)...)

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so launch errors surface here.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	// The main frame of a page target shares the target's ID.
	frame := cdp.FrameID(chromedp.FromContext(taskCtx).Target.TargetID)
	events := newLifecycle(frame)
	chromedp.ListenTarget(taskCtx, events.Listen)

	if err := chromedp.Run(taskCtx,
		emulate(profile),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: preparing tab: %w", ErrLaunch, err)
	}

	slog.DebugContext(ctx, "browser session opened",
		"exec", execPath,
		"viewport", fmt.Sprintf("%dx%d", profile.Width, profile.Height),
		"scale", profile.Scale,
	)

	return &Session{
		ctx:         taskCtx,
		cancel:      taskCancel,
		allocCancel: allocCancel,
		events:      events,
	}, nil
}

// Context returns the tab context for running chromedp actions.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Navigate loads targetURL and returns once the DOM is parsed. It then waits
// up to idleTimeout for the network to go idle; missing that is logged and
// tolerated. A navigation error or navTimeout is returned.
func (s *Session) Navigate(targetURL string, navTimeout, idleTimeout time.Duration) error {
	// Bound navigation with a timer instead of a child context: cancelling a
	// child of the chromedp task context breaks the target in chromedp v0.14.
	navDone := make(chan error, 1)
	go func() {
		navDone <- chromedp.Run(s.ctx, chromedp.Navigate(targetURL))
	}()

	navTimer := time.NewTimer(navTimeout)
	defer navTimer.Stop()

	select {
	case err := <-navDone:
		if err != nil {
			return fmt.Errorf("navigating to %s: %w", targetURL, err)
		}
	case <-s.events.DOMReady():
	case <-navTimer.C:
		return fmt.Errorf("navigation to %s timed out after %s", targetURL, navTimeout)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	slog.DebugContext(s.ctx, "navigation reached DOM content", "url", targetURL)

	if idleTimeout > 0 {
		idleTimer := time.NewTimer(idleTimeout)
		defer idleTimer.Stop()

		select {
		case <-s.events.NetworkIdle():
		case <-idleTimer.C:
			slog.WarnContext(s.ctx, "network did not go idle, continuing degraded", "timeout", idleTimeout)
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}

	s.snapshotDir = filepath.Join(".debug", sanitize(targetURL))
	snapshot(s.ctx, s.snapshotDir, "after_nav")
	return nil
}

// Snapshot dumps the current page under the session's debug directory. It
// is a no-op unless debug logging is on.
func (s *Session) Snapshot(label string) {
	if s.snapshotDir == "" {
		return
	}
	snapshot(s.ctx, s.snapshotDir, label)
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}
