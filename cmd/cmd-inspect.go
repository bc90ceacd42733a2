package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/stupside/shotpdf/internal/app"
	"github.com/stupside/shotpdf/internal/pdf"
)

// inspectCommand returns the "inspect" CLI subcommand.
func inspectCommand() *cli.Command {
	var path string

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print page count and page sizes of a PDF",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "pdf",
				Destination: &path,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if path == "" {
				cfg, err := app.ConfigFrom(cmd)
				if err != nil {
					return err
				}
				path = cfg.PDF.Path
			}

			doc, err := pdf.Inspect(path)
			if err != nil {
				return fmt.Errorf("inspecting %s: %w", path, err)
			}

			fmt.Printf("%s: %d pages\n", doc.Path, len(doc.Pages))
			for i, p := range doc.Pages {
				fmt.Printf("  %d: %.2f x %.2f pt\n", i+1, p.Width, p.Height)
			}
			return nil
		},
	}
}
