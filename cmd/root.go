package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "panelator",
		Short: "OCR and translation pipeline for downloaded comic chapters",
		Long: `Panelator recognizes the text on comic pages, merges the detections into
speech-bubble blocks, translates them and stores one JSON result per chapter.

Chapters are read from a library directory laid out as
<library>/<source>/<title>/<chapter dir or chapter.cbz>.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(opts.verbose)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "panelator.yaml", "Preferences file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newTranslateCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(os.Getenv("PANELATOR_LOG_LEVEL")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
