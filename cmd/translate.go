package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/panelator/internal/report"
	"github.com/spf13/cobra"
)

func newTranslateCmd(opts *rootOptions) *cobra.Command {
	var source, title, reportDir string

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate library chapters and wait for the queue to drain",
		Example: `  # Translate everything in the library
  panelator translate

  # Translate one title with Gemini and keep a YAML report
  PANELATOR_ENGINE=gemini panelator translate --source MangaDex --title "Solo Leveling" --report reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			ctx := cmd.Context()
			events := a.manager.Subscribe(ctx)
			recorder := report.NewRecorder()
			recorder.Result = a.manager.Result

			queued, skipped, err := a.enqueueLibrary(source, title)
			if err != nil {
				return err
			}
			slog.Info("Queued chapters", "queued", queued, "skipped", skipped)
			if queued == 0 {
				return nil
			}

			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for a.manager.IsRunning() {
				select {
				case <-ctx.Done():
					a.manager.Stop("interrupted")
					return ctx.Err()
				case ev, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					slog.Debug("Chapter status", "chapter", ev.Job.ChapterID, "status", ev.State.String())
					recorder.Observe(ev)
				case <-ticker.C:
				}
			}
			// the final events are already buffered by the time the queue stops
			for events != nil {
				select {
				case ev, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					recorder.Observe(ev)
				case <-time.After(100 * time.Millisecond):
					events = nil
				}
			}

			summary := report.Aggregate(recorder.Results(), report.RunConfig{
				Engine: a.prefs.EngineValue().String(),
				Model:  a.prefs.Model,
				Source: a.prefs.Source().String(),
				Target: a.prefs.TargetLanguage,
			})
			summary.PrintSummary(cmd.OutOrStdout())
			if reportDir != "" {
				path, err := summary.SaveToYAML(reportDir)
				if err != nil {
					return err
				}
				slog.Info("Report saved", "path", path)
			}
			if summary.FailureCount > 0 {
				return fmt.Errorf("%d chapters failed", summary.FailureCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Only translate this source")
	cmd.Flags().StringVar(&title, "title", "", "Only translate this title")
	cmd.Flags().StringVar(&reportDir, "report", "", "Write a YAML run report to this directory")

	return cmd
}
