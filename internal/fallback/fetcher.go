// Package fallback implements the HTTP-only capture path: fetch the raw HTML,
// cut out the matching fragments, and re-render each one as a standalone page.
package fallback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/shot"
)

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// Renderer rasterizes local HTML files. One Renderer serves a whole batch
// and is closed once by the Fetcher.
type Renderer interface {
	Render(ctx context.Context, fileURL string) ([]byte, error)
	Close() error
}

// OpenFunc starts a Renderer.
type OpenFunc func(ctx context.Context) (Renderer, error)

// Fetcher performs the HTTP GET and drives fragment rendering.
type Fetcher struct {
	client  *http.Client
	open    OpenFunc
	headers http.Header
	policy  *bluemonday.Policy
	cfg     app.FallbackConfig
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRenderer replaces the browser used to render fragments.
func WithRenderer(open OpenFunc) Option {
	return func(f *Fetcher) { f.open = open }
}

// New creates a Fetcher. By default it uses a proxy-less HTTP client and a
// rod-driven Chrome for rendering.
func New(browserCfg app.BrowserConfig, cfg app.FallbackConfig, opts ...Option) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	f := &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		open:    rodOpener(browserCfg, cfg),
		headers: browserHeaders(browserCfg),
		cfg:     cfg,
	}
	if cfg.Sanitize {
		f.policy = sanitizePolicy()
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// browserHeaders mimics what a desktop browser sends for a top-level page.
func browserHeaders(cfg app.BrowserConfig) http.Header {
	h := http.Header{}
	h.Set("User-Agent", cfg.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", cfg.AcceptLanguage)
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return h
}

// sanitizePolicy drops scripts and event handlers but keeps the markup and
// the class and id hooks page styles rely on.
func sanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	return p
}

// Capture fetches target.URL, selects target.Selector and renders every match.
// A non-200 response is an error. Zero matches dumps the body for debugging
// and returns an empty batch. Fragments that fail to render are skipped.
func (f *Fetcher) Capture(ctx context.Context, target shot.Target) (*shot.Batch, error) {
	body, contentType, err := f.fetch(ctx, target.URL)
	if err != nil {
		return nil, err
	}

	fragments, err := Extract(body, contentType, target.Selector)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "fallback elements found", "selector", target.Selector, "count", len(fragments))

	if len(fragments) == 0 {
		if err := f.dump(body); err != nil {
			slog.WarnContext(ctx, "saving page HTML failed", "error", err)
		} else {
			slog.InfoContext(ctx, "saved page HTML for debugging", "path", f.cfg.DebugHTML)
		}
		return &shot.Batch{}, nil
	}

	renderer, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			slog.WarnContext(ctx, "closing renderer failed", "error", err)
		}
	}()

	batch := &shot.Batch{}
	for i, frag := range fragments {
		if f.policy != nil {
			frag.Inner = f.policy.Sanitize(frag.Inner)
		}
		doc, err := Document(frag, target.URL, i+1)
		if err != nil {
			slog.WarnContext(ctx, "skipping fragment", "position", i+1, "error", err)
			continue
		}
		buf, err := f.render(ctx, renderer, doc)
		if err != nil {
			slog.WarnContext(ctx, "skipping fragment", "position", i+1, "error", err)
			continue
		}
		batch.Images = append(batch.Images, buf)
		slog.DebugContext(ctx, "fragment rendered", "position", i+1, "bytes", len(buf))
	}

	return batch, nil
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fallback: new request: %w", err)
	}
	req.Header = f.headers.Clone()

	slog.InfoContext(ctx, "fetching HTML", "url", pageURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fallback: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fallback: unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", fmt.Errorf("fallback: read body: %w", err)
	}

	slog.DebugContext(ctx, "fallback: fetched", "url", pageURL, "status", resp.StatusCode, "size", len(body))
	return body, resp.Header.Get("Content-Type"), nil
}

// Fragment is one matched element cut out of the fetched page.
type Fragment struct {
	Class string
	ID    string
	Inner string
}

// Extract decodes body to UTF-8 and returns the inner markup of every
// element matching selector, in document order.
func Extract(body []byte, contentType, selector string) ([]Fragment, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("fallback: decoding body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("fallback: parsing HTML: %w", err)
	}

	var fragments []Fragment
	var firstErr error
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		fragments = append(fragments, Fragment{Class: class, ID: id, Inner: inner})
	})
	if firstErr != nil {
		return nil, fmt.Errorf("fallback: rendering fragment: %w", firstErr)
	}
	return fragments, nil
}

// render writes doc to a temp file, rasterizes it and removes the file on
// every path.
func (f *Fetcher) render(ctx context.Context, renderer Renderer, doc []byte) ([]byte, error) {
	tmp, err := os.CreateTemp(f.cfg.TempDir, "fragment-*.html")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return renderer.Render(ctx, "file://"+filepath.ToSlash(abs))
}

func (f *Fetcher) dump(body []byte) error {
	if dir := filepath.Dir(f.cfg.DebugHTML); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(f.cfg.DebugHTML, body, 0o644)
}
