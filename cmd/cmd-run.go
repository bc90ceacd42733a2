package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/shotpdf/internal/app"
)

// runCommand returns the "run" CLI subcommand.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Capture the target and assemble the PDF",
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := app.ConfigFrom(cmd)
	if err != nil {
		return err
	}

	res, err := runCapture(ctx, cfg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !res.Succeeded {
		slog.WarnContext(ctx, "nothing captured, skipping pdf", "url", cfg.Target.URL, "selector", cfg.Target.Selector)
		return nil
	}

	return assemble(ctx, cfg)
}
