package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/panelator/internal/config"
	"github.com/lehigh-university-libraries/panelator/internal/dataset"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <output.parquet|output.jsonl>",
		Short: "Export stored translations as a block-level dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			n, err := dataset.Export(storage.New(prefs.TranslationsDir, nil), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d blocks to %s\n", n, args[0])
			return nil
		},
	}
	return cmd
}
