package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader reads an exported dataset
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load loads every record from a dataset file (JSONL or Parquet)
func (l *Loader) Load() ([]BlockRecord, error) {
	return l.LoadSample(-1)
}

// LoadSample loads at most limit records. A negative limit loads everything.
func (l *Loader) LoadSample(limit int) ([]BlockRecord, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func (l *Loader) loadJSONL(limit int) ([]BlockRecord, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []BlockRecord
	scanner := bufio.NewScanner(file)

	// OCR text can make long lines
	const maxCapacity = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() && (limit < 0 || len(records) < limit) {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record BlockRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_records", len(records), "total_lines", lineNum)
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]BlockRecord, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[BlockRecord](pf)
	defer reader.Close()

	var records []BlockRecord
	rows := make([]BlockRecord, 128)

	for limit < 0 || len(records) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit >= 0 && n > limit-len(records) {
				n = limit - len(records)
			}
			records = append(records, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "total_records", len(records))
	return records, nil
}

// Stats counts what a set of records covers.
type Stats struct {
	Records      int
	Chapters     int
	Pages        int
	Untranslated int
}

// Summarize counts distinct chapters and pages and blocks with no translation.
func Summarize(records []BlockRecord) Stats {
	chapters := make(map[string]bool)
	pages := make(map[string]bool)
	stats := Stats{Records: len(records)}
	for _, r := range records {
		chapter := r.Source + "/" + r.Document + "/" + r.Chapter
		chapters[chapter] = true
		pages[chapter+"/"+r.Page] = true
		if strings.TrimSpace(r.Translation) == "" {
			stats.Untranslated++
		}
	}
	stats.Chapters = len(chapters)
	stats.Pages = len(pages)
	return stats
}
