package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// Config holds all application configuration.
type Config struct {
	Target   TargetConfig   `koanf:"target" validate:"required"`
	Browser  BrowserConfig  `koanf:"browser" validate:"required"`
	Capture  CaptureConfig  `koanf:"capture" validate:"required"`
	Retry    RetryConfig    `koanf:"retry" validate:"required"`
	Fallback FallbackConfig `koanf:"fallback" validate:"required"`
	Output   OutputConfig   `koanf:"output" validate:"required"`
	PDF      PDFConfig      `koanf:"pdf" validate:"required"`
}

// TargetConfig is the page and selector to capture.
type TargetConfig struct {
	URL      string `koanf:"url" validate:"required,url"`
	Selector string `koanf:"selector" validate:"required"`
}

// BrowserConfig holds settings shared by both headless browser sessions.
type BrowserConfig struct {
	ChromePath     string  `koanf:"chrome_path"`
	Download       bool    `koanf:"download"`
	Headless       bool    `koanf:"headless"`
	NoSandbox      bool    `koanf:"no_sandbox"`
	UserAgent      string  `koanf:"user_agent" validate:"required"`
	AcceptLanguage string  `koanf:"accept_language" validate:"required"`
	Width          int     `koanf:"width" validate:"gt=0"`
	Height         int     `koanf:"height" validate:"gt=0"`
	Scale          float64 `koanf:"scale" validate:"gt=0"`
}

// CaptureConfig holds timings for the live element capture.
type CaptureConfig struct {
	NavTimeout     time.Duration `koanf:"nav_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
	SettleDelay    time.Duration `koanf:"settle_delay"`
	ElementDelay   time.Duration `koanf:"element_delay"`
	ElementTimeout time.Duration `koanf:"element_timeout" validate:"required"`
}

// RetryConfig bounds how often the live capture is re-attempted on error.
type RetryConfig struct {
	Attempts int           `koanf:"attempts" validate:"min=1"`
	Backoff  time.Duration `koanf:"backoff"`
}

// FallbackConfig holds settings for the HTTP fetch and fragment re-render path.
type FallbackConfig struct {
	Timeout       time.Duration `koanf:"timeout" validate:"required"`
	RenderDelay   time.Duration `koanf:"render_delay"`
	RenderTimeout time.Duration `koanf:"render_timeout" validate:"required"`
	DebugHTML     string        `koanf:"debug_html" validate:"required"`
	TempDir       string        `koanf:"temp_dir"`
	Sanitize      bool          `koanf:"sanitize"`
}

// OutputConfig locates the screenshot directory.
type OutputConfig struct {
	// Dir is wiped at the start of every capture, so it may not be the
	// filesystem root or contain the working directory.
	Dir string `koanf:"dir" validate:"required,scratchdir"`
}

// PDFConfig holds settings for the assembled document.
type PDFConfig struct {
	Path     string  `koanf:"path" validate:"required"`
	DPI      float64 `koanf:"dpi" validate:"gt=0"`
	Compress bool    `koanf:"compress"`
	Verify   bool    `koanf:"verify"`
	Title    string  `koanf:"title"`
	Author   string  `koanf:"author"`
}

// Scale is the factor applied to image pixels to get page points.
func (c PDFConfig) Scale() float64 {
	return c.DPI / 72
}

// Default returns the built-in configuration. A config file only needs to
// name the keys it changes.
func Default() Config {
	return Config{
		Target: TargetConfig{
			URL:      "https://www.jiemian.com/",
			Selector: ".columns-lists",
		},
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
			Width:          1280,
			Height:         800,
			Scale:          2,
		},
		Capture: CaptureConfig{
			NavTimeout:     60 * time.Second,
			IdleTimeout:    30 * time.Second,
			SettleDelay:    5 * time.Second,
			ElementDelay:   500 * time.Millisecond,
			ElementTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			Attempts: 2,
			Backoff:  2 * time.Second,
		},
		Fallback: FallbackConfig{
			Timeout:       30 * time.Second,
			RenderDelay:   time.Second,
			RenderTimeout: 30 * time.Second,
			DebugHTML:     "page.html",
		},
		Output: OutputConfig{
			Dir: "out/screenshots",
		},
		PDF: PDFConfig{
			Path:   "out/pdfs/screenshots.pdf",
			DPI:    300,
			Verify: true,
			Title:  "Screenshots",
			Author: "shotpdf",
		},
	}
}

// Load reads configuration from a YAML file on top of Default. A missing
// file is not an error. The result is not validated; call Validate once all
// overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return &cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return &cfg, nil
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("scratchdir", scratchDir); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// scratchDir rejects directories whose removal would take the working
// directory or the whole filesystem with it.
func scratchDir(fl validator.FieldLevel) bool {
	abs, err := filepath.Abs(fl.Field().String())
	if err != nil {
		return false
	}
	if filepath.Dir(abs) == abs {
		return false
	}
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(abs, wd)
	if err != nil {
		return true
	}
	// wd lies outside abs only if reaching it climbs out first.
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
