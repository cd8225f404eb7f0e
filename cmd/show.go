package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/lehigh-university-libraries/panelator/internal/config"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	var chapter storage.Chapter
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored translation of a chapter",
		Example: `  panelator show --source MangaDex --title "Solo Leveling" --chapter "Chapter 1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			result, err := storage.New(prefs.TranslationsDir, nil).ReadResult(chapter)
			if err != nil {
				return err
			}
			if len(result) == 0 {
				return fmt.Errorf("no translation stored for %s/%s/%s", chapter.Source, chapter.Title, chapter.Name)
			}

			var out []byte
			if asYAML {
				out, err = yaml.Marshal(result)
			} else {
				out, err = json.MarshalIndent(result, "", "  ")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&chapter.Source, "source", "", "Source name")
	cmd.Flags().StringVar(&chapter.Title, "title", "", "Title")
	cmd.Flags().StringVar(&chapter.Name, "chapter", "", "Chapter name")
	cmd.Flags().StringVar(&chapter.Scanlator, "scanlator", "", "Scanlator, if the download has one")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print YAML instead of JSON")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}
