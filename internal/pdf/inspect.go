package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from writing its config under the user's home.
	api.DisableConfigDir()
}

// Inspect parses and validates the PDF at path and reports its page sizes.
func Inspect(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("reading page sizes: %w", err)
	}

	doc := &Document{Path: path, Pages: make([]Page, 0, len(dims))}
	for _, d := range dims {
		doc.Pages = append(doc.Pages, Page{Width: d.Width, Height: d.Height})
	}
	return doc, nil
}
