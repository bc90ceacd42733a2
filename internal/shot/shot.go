// Package shot holds the capture data model and owns the on-disk layout of
// the screenshot directory.
package shot

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

// FullPageName is the diagnostic capture written when no element matched.
const FullPageName = "full-page.png"

// Sources reported in Result.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

var namePattern = regexp.MustCompile(`^screenshot-(\d+)\.png$`)

// Target is the page and selector a run captures.
type Target struct {
	URL      string
	Selector string
}

// Batch is what a capture tier produces. Images are in DOM match order.
// FullPage is only set when nothing matched.
type Batch struct {
	Images   [][]byte
	FullPage []byte
}

// Result is the outcome of one capture run.
type Result struct {
	Succeeded bool
	Count     int
	Source    string
}

// File is a numbered screenshot on disk.
type File struct {
	Index int
	Path  string
}

// Name returns the file name for the i-th screenshot (1-based).
func Name(i int) string {
	return fmt.Sprintf("screenshot-%d.png", i)
}

// Index parses the sequence number out of a screenshot file name.
func Index(name string) (int, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Reset deletes dir and everything in it, then recreates it empty.
func Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// WriteAll persists images as screenshot-1.png .. screenshot-N.png in slice
// order and returns how many were written.
func WriteAll(dir string, images [][]byte) (int, error) {
	for i, img := range images {
		p := filepath.Join(dir, Name(i+1))
		if err := os.WriteFile(p, img, 0o644); err != nil {
			return i, fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return len(images), nil
}

// WriteFullPage persists the diagnostic whole-page capture.
func WriteFullPage(dir string, png []byte) (string, error) {
	p := filepath.Join(dir, FullPageName)
	if err := os.WriteFile(p, png, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", p, err)
	}
	return p, nil
}

// List returns the numbered screenshots in dir sorted by index. Other files
// are ignored and a missing directory yields no files.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		n, ok := Index(e.Name())
		if !ok {
			continue
		}
		files = append(files, File{Index: n, Path: filepath.Join(dir, e.Name())})
	}

	slices.SortFunc(files, func(a, b File) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return files, nil
}
