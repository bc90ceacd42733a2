package capture

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/browser"
	"github.com/stupside/shotpdf/internal/shot"
)

// browserConfig returns settings for a real Chrome, skipping the test unless
// browser tests are enabled and a binary is available.
func browserConfig(t *testing.T) app.BrowserConfig {
	t.Helper()
	if os.Getenv("SHOTPDF_BROWSER_TESTS") != "1" {
		t.Skip("set SHOTPDF_BROWSER_TESTS=1 to run browser tests")
	}
	cfg := app.Default().Browser
	cfg.NoSandbox = true
	p, err := browser.ResolveExecPath(cfg)
	if err != nil || p == "" {
		t.Skip("no Chrome binary found")
	}
	cfg.ChromePath = p
	return cfg
}

func fastCapture() app.CaptureConfig {
	return app.CaptureConfig{
		NavTimeout:     20 * time.Second,
		IdleTimeout:    2 * time.Second,
		SettleDelay:    100 * time.Millisecond,
		ElementDelay:   50 * time.Millisecond,
		ElementTimeout: 10 * time.Second,
	}
}

const page = `<!DOCTYPE html><html><body style="margin:0">
<div class="card" style="width:100px;height:50px;background:#c00">one</div>
<div class="card" style="display:none">hidden</div>
<div class="card" style="width:120px;height:40px;background:#0c0">two</div>
<div class="card" style="width:80px;height:30px;background:#00c">three</div>
</body></html>`

func TestDriverCapturesEachVisibleMatch(t *testing.T) {
	cfg := browserConfig(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	batch, err := NewDriver(cfg, fastCapture()).Capture(ctx, shot.Target{URL: srv.URL, Selector: ".card"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(batch.Images) != 3 {
		t.Fatalf("got %d images, want 3 (hidden element skipped)", len(batch.Images))
	}

	// Widths come out at device pixel density, in document order.
	wantWidths := []int{200, 240, 160}
	for i, img := range batch.Images {
		c, err := png.DecodeConfig(bytes.NewReader(img))
		if err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
		if c.Width != wantWidths[i] {
			t.Errorf("image %d width = %d, want %d", i, c.Width, wantWidths[i])
		}
	}
}

func TestDriverNoMatchReturnsDiagnostic(t *testing.T) {
	cfg := browserConfig(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	batch, err := NewDriver(cfg, fastCapture()).Capture(ctx, shot.Target{URL: srv.URL, Selector: ".missing"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(batch.Images) != 0 {
		t.Fatalf("got %d images, want 0", len(batch.Images))
	}
	if len(batch.FullPage) == 0 {
		t.Fatal("expected a diagnostic full-page capture")
	}
}

func TestDriverLaunchFailure(t *testing.T) {
	cfg := app.Default().Browser
	cfg.ChromePath = "/nonexistent/chrome"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := NewDriver(cfg, fastCapture()).Capture(ctx, shot.Target{URL: "http://127.0.0.1:1", Selector: ".x"})
	if !errors.Is(err, browser.ErrLaunch) {
		t.Fatalf("got %v, want ErrLaunch", err)
	}
}
