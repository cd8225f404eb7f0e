// Package report aggregates the outcome of a translation run and writes it as
// a console summary or a YAML file.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChapterResult is the outcome of one chapter
type ChapterResult struct {
	ChapterID      string        `yaml:"chapter"`
	Status         string        `yaml:"status"`
	Pages          int           `yaml:"pages"`
	Blocks         int           `yaml:"blocks"`
	ProcessingTime time.Duration `yaml:"processing_time"`
	Error          string        `yaml:"error,omitempty"`
}

// RunConfig describes the engine configuration of a run
type RunConfig struct {
	Engine string `yaml:"engine"`
	Model  string `yaml:"model,omitempty"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Summary represents aggregated run statistics
type Summary struct {
	Config RunConfig `yaml:"config"`

	TotalChapters int `yaml:"total_chapters"`
	SuccessCount  int `yaml:"success_count"`
	FailureCount  int `yaml:"failure_count"`
	TotalPages    int `yaml:"total_pages"`
	TotalBlocks   int `yaml:"total_blocks"`

	// Timing
	AverageProcessingTime time.Duration `yaml:"average_processing_time"`
	TotalProcessingTime   time.Duration `yaml:"total_processing_time"`

	RunDate time.Time       `yaml:"run_date"`
	Results []ChapterResult `yaml:"results"`
}

// Aggregate summarizes chapter results. Averages only count successes.
func Aggregate(results []ChapterResult, cfg RunConfig) *Summary {
	s := &Summary{
		Config:        cfg,
		TotalChapters: len(results),
		RunDate:       time.Now(),
		Results:       results,
	}

	var successDuration time.Duration
	for _, r := range results {
		s.TotalProcessingTime += r.ProcessingTime
		if r.Error != "" || r.Status != "TRANSLATED" {
			s.FailureCount++
			continue
		}
		s.SuccessCount++
		s.TotalPages += r.Pages
		s.TotalBlocks += r.Blocks
		successDuration += r.ProcessingTime
	}
	if s.SuccessCount > 0 {
		s.AverageProcessingTime = successDuration / time.Duration(s.SuccessCount)
	}
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// PrintSummary prints a human-readable summary of the run
func (s *Summary) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "PANELATOR TRANSLATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Run Date: %s\n", s.RunDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Engine: %s\n", s.Config.Engine)
	if s.Config.Model != "" {
		fmt.Fprintf(w, "Model: %s\n", s.Config.Model)
	}
	fmt.Fprintf(w, "Languages: %s -> %s\n", s.Config.Source, s.Config.Target)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Chapters: %d\n", s.TotalChapters)
	fmt.Fprintf(w, "Translated: %d (%.1f%%)\n", s.SuccessCount, percent(s.SuccessCount, s.TotalChapters))
	fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", s.FailureCount, percent(s.FailureCount, s.TotalChapters))
	fmt.Fprintf(w, "Pages: %d, Blocks: %d\n", s.TotalPages, s.TotalBlocks)
	fmt.Fprintf(w, "Average Processing Time: %s\n", s.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", s.TotalProcessingTime)

	if s.FailureCount > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "FAILURES")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, r := range s.Results {
			if r.Error != "" || r.Status != "TRANSLATED" {
				fmt.Fprintf(w, "%s: %s\n", r.ChapterID, r.Error)
			}
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

// SaveToYAML writes the summary to dir as <engine>-<timestamp>.yaml and
// returns the file path.
func (s *Summary) SaveToYAML(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	timestamp := s.RunDate.Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", s.Config.Engine, timestamp))

	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}
