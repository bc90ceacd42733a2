package action

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Bounded runs actions on ctx and gives up after timeout. The actions keep
// running in the background until ctx ends; a child context is not used
// because cancelling one breaks the chromedp target.
func Bounded(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(ctx, actions...)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits d, returning early if ctx ends.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
