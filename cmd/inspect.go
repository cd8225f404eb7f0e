package cmd

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/panelator/internal/dataset"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var limit int
	var showText bool

	cmd := &cobra.Command{
		Use:   "inspect <dataset.parquet|dataset.jsonl>",
		Short: "Inspect an exported block dataset",
		Long: `Read back a dataset written by "panelator export" and print its blocks.

Useful for checking an export before handing it to another tool.`,
		Example: `  # Show the first 10 blocks
  panelator inspect blocks.parquet

  # Count everything, print nothing per block
  panelator inspect blocks.jsonl --limit 0 --text=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := dataset.NewLoader(args[0])

			var records []dataset.BlockRecord
			var err error
			if limit > 0 {
				records, err = loader.LoadSample(limit)
			} else {
				records, err = loader.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			out := cmd.OutOrStdout()
			stats := dataset.Summarize(records)
			fmt.Fprintf(out, "Loaded %d blocks from %s\n", stats.Records, args[0])
			fmt.Fprintf(out, "Chapters: %d  Pages: %d  Untranslated: %d\n", stats.Chapters, stats.Pages, stats.Untranslated)
			if !showText {
				return nil
			}
			fmt.Fprintln(out, strings.Repeat("=", 80))

			ctx := cmd.Context()
			for i, r := range records {
				if ctx.Err() != nil {
					fmt.Fprintln(out, "\nInspection interrupted.")
					return nil
				}
				fmt.Fprintf(out, "BLOCK %d/%d  %s/%s/%s  %s #%d\n", i+1, len(records), r.Source, r.Document, r.Chapter, r.Page, r.BlockIndex)
				fmt.Fprintf(out, "  at (%.0f, %.0f) %.0fx%.0f on %.0fx%.0f\n", r.X, r.Y, r.Width, r.Height, r.ImgWidth, r.ImgHeight)
				fmt.Fprintf(out, "  text:        %s\n", r.Text)
				fmt.Fprintf(out, "  translation: %s\n", r.Translation)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of blocks to read (0 for all)")
	cmd.Flags().BoolVar(&showText, "text", true, "Print each block")

	return cmd
}
