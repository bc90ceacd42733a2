package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/browser"
	"github.com/stupside/shotpdf/internal/shot"
)

// stub replays one response per call; the last one repeats.
type stub struct {
	responses []response
	calls     int
}

type response struct {
	batch *shot.Batch
	err   error
}

func (s *stub) Capture(context.Context, shot.Target) (*shot.Batch, error) {
	r := s.responses[min(s.calls, len(s.responses)-1)]
	s.calls++
	return r.batch, r.err
}

func images(prefix string, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("%s-%d", prefix, i+1))
	}
	return out
}

func ok(b *shot.Batch) *stub { return &stub{responses: []response{{batch: b}}} }

var target = shot.Target{URL: "https://example.com/", Selector: ".item"}

func newPipeline(t *testing.T, primary, fallback Capturer) (*Pipeline, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "screenshots")
	return New(primary, fallback, app.OutputConfig{Dir: dir}, app.RetryConfig{Attempts: 2}), dir
}

func listContents(t *testing.T, dir string) []string {
	t.Helper()
	files, err := shot.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for i, f := range files {
		if f.Index != i+1 {
			t.Fatalf("gap: position %d has index %d", i+1, f.Index)
		}
		b, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(b))
	}
	return out
}

func TestPrimaryMatches(t *testing.T) {
	fallback := ok(&shot.Batch{Images: images("fb", 1)})
	p, dir := newPipeline(t, ok(&shot.Batch{Images: images("live", 3)}), fallback)

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !res.Succeeded || res.Count != 3 || res.Source != shot.SourcePrimary {
		t.Fatalf("unexpected result %+v", res)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run when live capture matched")
	}

	got := listContents(t, dir)
	want := []string{"live-1", "live-2", "live-3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestFallbackWhenPrimaryEmpty(t *testing.T) {
	primary := ok(&shot.Batch{FullPage: []byte("diag")})
	p, dir := newPipeline(t, primary, ok(&shot.Batch{Images: images("fb", 2)}))

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !res.Succeeded || res.Count != 2 || res.Source != shot.SourceFallback {
		t.Fatalf("unexpected result %+v", res)
	}
	if primary.calls != 1 {
		t.Fatalf("empty live result must not be retried, got %d calls", primary.calls)
	}

	got := listContents(t, dir)
	if fmt.Sprint(got) != fmt.Sprint([]string{"fb-1", "fb-2"}) {
		t.Fatalf("files = %v", got)
	}

	b, err := os.ReadFile(filepath.Join(dir, shot.FullPageName))
	if err != nil || string(b) != "diag" {
		t.Fatalf("diagnostic capture not kept: %v", err)
	}
}

func TestNothingCaptured(t *testing.T) {
	p, dir := newPipeline(t, ok(&shot.Batch{}), ok(&shot.Batch{}))

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Succeeded || res.Count != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := listContents(t, dir); len(got) != 0 {
		t.Fatalf("expected no screenshots, got %v", got)
	}
}

func TestFallbackErrorIsNotFatal(t *testing.T) {
	fallback := &stub{responses: []response{{err: errors.New("status 500")}}}
	p, _ := newPipeline(t, ok(&shot.Batch{}), fallback)

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Succeeded {
		t.Fatal("expected no success")
	}
}

func TestRetryThenSucceed(t *testing.T) {
	primary := &stub{responses: []response{
		{err: errors.New("navigation timed out")},
		{batch: &shot.Batch{Images: images("live", 1)}},
	}}
	fallback := ok(&shot.Batch{})
	p, _ := newPipeline(t, primary, fallback)

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("primary called %d times, want 2", primary.calls)
	}
	if res.Source != shot.SourcePrimary || res.Count != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run")
	}
}

func TestNavigationFailureFallsBack(t *testing.T) {
	primary := &stub{responses: []response{{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}}}
	p, _ := newPipeline(t, primary, ok(&shot.Batch{Images: images("fb", 1)}))

	res, err := p.Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("primary called %d times, want 2", primary.calls)
	}
	if res.Source != shot.SourceFallback {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLaunchFailureIsFatal(t *testing.T) {
	primary := &stub{responses: []response{{err: fmt.Errorf("%w: exec: not found", browser.ErrLaunch)}}}
	fallback := ok(&shot.Batch{Images: images("fb", 1)})
	p, _ := newPipeline(t, primary, fallback)

	_, err := p.Capture(context.Background(), target)
	if !errors.Is(err, browser.ErrLaunch) {
		t.Fatalf("got %v, want ErrLaunch", err)
	}
	if primary.calls != 2 {
		t.Fatalf("launch should be retried, got %d calls", primary.calls)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run after a launch failure")
	}
}

func TestSecondRunReplacesFirst(t *testing.T) {
	primary := &stub{responses: []response{
		{batch: &shot.Batch{Images: images("first", 5)}},
		{batch: &shot.Batch{Images: images("second", 2)}},
	}}
	p, dir := newPipeline(t, primary, ok(&shot.Batch{}))

	for i := 0; i < 2; i++ {
		if _, err := p.Capture(context.Background(), target); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}

	got := listContents(t, dir)
	if fmt.Sprint(got) != fmt.Sprint([]string{"second-1", "second-2"}) {
		t.Fatalf("files = %v", got)
	}
}

func TestCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &stub{responses: []response{{err: errors.New("boom")}}}
	fallback := ok(&shot.Batch{Images: images("fb", 1)})
	dir := filepath.Join(t.TempDir(), "screenshots")
	p := New(primary, fallback, app.OutputConfig{Dir: dir}, app.RetryConfig{Attempts: 3, Backoff: 1 << 40})

	cancel()
	_, err := p.Capture(ctx, target)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times, want 1", primary.calls)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run after cancellation")
	}
}

// cancelling cancels ctx from inside a capture, like a signal mid-run.
type cancelling struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelling) Capture(ctx context.Context, _ shot.Target) (*shot.Batch, error) {
	c.calls++
	c.cancel()
	return nil, ctx.Err()
}

func TestCancelledDuringFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fallback := &cancelling{cancel: cancel}
	p, _ := newPipeline(t, ok(&shot.Batch{}), fallback)

	res, err := p.Capture(ctx, target)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res.Succeeded || fallback.calls != 1 {
		t.Fatalf("unexpected result %+v after %d fallback calls", res, fallback.calls)
	}
}
