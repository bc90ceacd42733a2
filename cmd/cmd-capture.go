package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/capture"
	"github.com/stupside/shotpdf/internal/fallback"
	"github.com/stupside/shotpdf/internal/pipeline"
	"github.com/stupside/shotpdf/internal/shot"
)

// captureCommand returns the "capture" CLI subcommand.
func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture screenshots only",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}
			_, err = runCapture(ctx, cfg)
			return err
		},
	}
}

func runCapture(ctx context.Context, cfg *app.Config) (shot.Result, error) {
	p := pipeline.New(
		capture.NewDriver(cfg.Browser, cfg.Capture),
		fallback.New(cfg.Browser, cfg.Fallback),
		cfg.Output,
		cfg.Retry,
	)

	res, err := p.Capture(ctx, shot.Target{URL: cfg.Target.URL, Selector: cfg.Target.Selector})
	if err != nil {
		return res, err
	}

	slog.InfoContext(ctx, "capture finished",
		"succeeded", res.Succeeded,
		"count", res.Count,
		"source", res.Source,
		"dir", cfg.Output.Dir,
	)
	return res, nil
}
