// Package pdf stitches the screenshot directory into a single PDF, one page
// per image.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/shot"
)

// ErrNoInput is returned when the screenshot directory holds nothing to assemble.
var ErrNoInput = errors.New("no screenshots to assemble")

const creator = "shotpdf"

// Page is one page of an assembled document, in points.
type Page struct {
	Width  float64
	Height float64
	Source string
}

// Document describes a PDF on disk.
type Document struct {
	Path  string
	Pages []Page
}

// Assembler writes PDFs according to its configuration.
type Assembler struct {
	cfg app.PDFConfig
}

// New creates an Assembler writing to cfg.Path.
func New(cfg app.PDFConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble builds the PDF from dir's screenshots in numeric order. Each page is
// the image's pixel size scaled by dpi/72, with the image filling it.
func (a *Assembler) Assemble(dir string) (*Document, error) {
	files, err := shot.List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Warn("no screenshot images found", "dir", dir)
		return nil, ErrNoInput
	}

	slog.Info("assembling pdf", "images", len(files), "path", a.cfg.Path)

	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCompression(a.cfg.Compress)
	doc.SetTitle(a.cfg.Title, true)
	doc.SetAuthor(a.cfg.Author, true)
	doc.SetCreator(creator, true)
	doc.SetProducer(creator, true)

	scale := a.cfg.Scale()
	out := &Document{Path: a.cfg.Path}

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}

		// Header only; the image itself is embedded as-is.
		ic, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("reading dimensions of %s: %w", f.Path, err)
		}

		w := float64(ic.Width) * scale
		h := float64(ic.Height) * scale

		opts := fpdf.ImageOptions{ImageType: "PNG"}
		doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		doc.RegisterImageOptionsReader(f.Path, opts, bytes.NewReader(data))
		doc.ImageOptions(f.Path, 0, 0, w, h, false, opts, 0, "")
		if err := doc.Error(); err != nil {
			return nil, fmt.Errorf("adding %s: %w", f.Path, err)
		}

		slog.Debug("page added", "file", filepath.Base(f.Path), "width", w, "height", h)
		out.Pages = append(out.Pages, Page{Width: w, Height: h, Source: f.Path})
	}

	if err := a.write(doc); err != nil {
		return nil, err
	}

	if a.cfg.Verify {
		got, err := Inspect(a.cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("verifying %s: %w", a.cfg.Path, err)
		}
		if len(got.Pages) != len(out.Pages) {
			return nil, fmt.Errorf("verifying %s: %d pages written, %d read back", a.cfg.Path, len(out.Pages), len(got.Pages))
		}
	}

	slog.Info("pdf created", "path", a.cfg.Path, "pages", len(out.Pages))
	return out, nil
}

// write renders doc into a temp file beside the target and renames it into
// place, so a failed run never leaves a truncated PDF at cfg.Path.
func (a *Assembler) write(doc *fpdf.Fpdf) error {
	dir := filepath.Dir(a.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".shotpdf-*.pdf")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := doc.Output(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing pdf: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.cfg.Path); err != nil {
		return fmt.Errorf("moving pdf into place: %w", err)
	}
	return nil
}
