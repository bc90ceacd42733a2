package browser

import (
	"github.com/stupside/shotpdf/internal/app"
)

// Profile is the fixed desktop identity a session presents: the UA and
// language headers plus the viewport the page is laid out in.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Width          int
	Height         int
	Scale          float64 // device pixels per CSS pixel
}

// NewProfile builds a Profile from browser settings.
func NewProfile(cfg app.BrowserConfig) *Profile {
	return &Profile{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Width:          cfg.Width,
		Height:         cfg.Height,
		Scale:          cfg.Scale,
	}
}
