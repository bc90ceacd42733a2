package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/version"
)

// Root returns the root CLI command. Without a subcommand it runs the full
// capture and assembly.
func Root() *cli.Command {
	var (
		configPath string
		targetURL  string
		selector   string
	)

	return &cli.Command{
		Name:    "shotpdf",
		Usage:   "Screenshot the elements matching a selector and bind them into a PDF",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to configuration file",
				Value:       "config.yaml",
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Page to capture",
				Sources:     cli.EnvVars("TARGET_URL"),
				Destination: &targetURL,
			},
			&cli.StringFlag{
				Name:        "selector",
				Usage:       "CSS selector of the elements to capture",
				Sources:     cli.EnvVars("TARGET_SELECTOR"),
				Destination: &selector,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := app.Load(configPath)
			if err != nil {
				return ctx, err
			}
			if targetURL != "" {
				cfg.Target.URL = targetURL
			}
			if selector != "" {
				cfg.Target.Selector = selector
			}
			if err := cfg.Validate(); err != nil {
				return ctx, err
			}
			cmd.Metadata["config"] = cfg
			return ctx, nil
		},
		Action: runAction,
		Commands: []*cli.Command{
			runCommand(),
			captureCommand(),
			assembleCommand(),
			inspectCommand(),
			{
				Name:  "info",
				Usage: "Print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					slog.Info("build",
						"version", version.Version,
						"commit", version.Commit,
						"build_time", version.BuildTime,
					)
					return nil
				},
			},
		},
		Metadata: map[string]any{},
	}
}
