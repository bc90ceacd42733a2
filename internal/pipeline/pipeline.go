// Package pipeline runs the two-tier capture: live browser first, HTTP fetch
// and re-render when the live page yields nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/browser"
	"github.com/stupside/shotpdf/internal/shot"
)

// Capturer produces element screenshots for a target.
type Capturer interface {
	Capture(ctx context.Context, target shot.Target) (*shot.Batch, error)
}

// Pipeline persists whichever tier produced screenshots into one directory.
type Pipeline struct {
	primary  Capturer
	fallback Capturer
	dir      string
	retry    app.RetryConfig
}

// New creates a Pipeline writing into output.Dir.
func New(primary, fallback Capturer, output app.OutputConfig, retry app.RetryConfig) *Pipeline {
	return &Pipeline{
		primary:  primary,
		fallback: fallback,
		dir:      output.Dir,
		retry:    retry,
	}
}

// Capture clears the output directory and fills it with screenshot-1..N.png.
// Nothing captured by either tier is reported through Result, not as an
// error. Only cancellation, a browser that cannot launch, or a failing
// filesystem is.
func (p *Pipeline) Capture(ctx context.Context, target shot.Target) (shot.Result, error) {
	if err := shot.Reset(p.dir); err != nil {
		return shot.Result{}, err
	}

	batch, err := p.primaryWithRetry(ctx, target)
	if cerr := ctx.Err(); cerr != nil {
		return shot.Result{}, cerr
	}
	if errors.Is(err, browser.ErrLaunch) {
		return shot.Result{}, err
	}
	if err != nil {
		slog.WarnContext(ctx, "live capture failed, treating as no match", "error", err)
		batch = &shot.Batch{}
	}

	if len(batch.Images) > 0 {
		return p.persist(ctx, batch.Images, shot.SourcePrimary)
	}

	if len(batch.FullPage) > 0 {
		path, err := shot.WriteFullPage(p.dir, batch.FullPage)
		if err != nil {
			slog.WarnContext(ctx, "saving diagnostic capture failed", "error", err)
		} else {
			slog.InfoContext(ctx, "saved full page for debugging", "path", path)
		}
	}

	slog.InfoContext(ctx, "live capture found nothing, trying fallback", "url", target.URL, "selector", target.Selector)

	batch, err = p.fallback.Capture(ctx, target)
	if cerr := ctx.Err(); cerr != nil {
		return shot.Result{}, cerr
	}
	if errors.Is(err, browser.ErrLaunch) {
		return shot.Result{}, err
	}
	if err != nil {
		slog.WarnContext(ctx, "fallback capture failed", "error", err)
		batch = &shot.Batch{}
	}

	if len(batch.Images) > 0 {
		return p.persist(ctx, batch.Images, shot.SourceFallback)
	}

	slog.WarnContext(ctx, "both capture paths produced nothing", "url", target.URL, "selector", target.Selector)
	return shot.Result{}, nil
}

// primaryWithRetry re-runs the live capture on error with a fixed backoff.
// An empty batch is a valid answer and is not retried.
func (p *Pipeline) primaryWithRetry(ctx context.Context, target shot.Target) (*shot.Batch, error) {
	var errs []error

	for attempt := 1; attempt <= p.retry.Attempts; attempt++ {
		if attempt > 1 {
			slog.InfoContext(ctx, "retrying live capture", "attempt", attempt, "backoff", p.retry.Backoff)
			select {
			case <-time.After(p.retry.Backoff):
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
				return nil, errors.Join(errs...)
			}
		}

		slog.InfoContext(ctx, "attempting live capture", "attempt", attempt, "url", target.URL)

		batch, err := p.primary.Capture(ctx, target)
		if err == nil {
			return batch, nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
	}

	return nil, errors.Join(errs...)
}

func (p *Pipeline) persist(ctx context.Context, images [][]byte, source string) (shot.Result, error) {
	n, err := shot.WriteAll(p.dir, images)
	if err != nil {
		return shot.Result{}, err
	}
	slog.InfoContext(ctx, "screenshots saved", "count", n, "dir", p.dir, "source", source)
	return shot.Result{Succeeded: true, Count: n, Source: source}, nil
}
