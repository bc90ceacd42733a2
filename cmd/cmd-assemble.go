package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/pdf"
)

// assembleCommand returns the "assemble" CLI subcommand.
func assembleCommand() *cli.Command {
	return &cli.Command{
		Name:  "assemble",
		Usage: "Build the PDF from existing screenshots",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}
			return assemble(ctx, cfg)
		},
	}
}

func assemble(ctx context.Context, cfg *app.Config) error {
	doc, err := pdf.New(cfg.PDF).Assemble(cfg.Output.Dir)
	if errors.Is(err, pdf.ErrNoInput) {
		slog.WarnContext(ctx, "no pdf written", "dir", cfg.Output.Dir)
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "pdf ready", "path", doc.Path, "pages", len(doc.Pages))
	return nil
}
