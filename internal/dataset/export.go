// Package dataset flattens persisted chapter results into block-level rows and
// reads them back, as Parquet or JSONL.
package dataset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
)

// Rows flattens every stored result. Pages are visited in natural order.
func Rows(store *storage.Provider) ([]BlockRecord, error) {
	var rows []BlockRecord
	err := store.Walk(func(stored storage.StoredResult, result models.DocumentResult) error {
		rows = append(rows, flatten(stored, result)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk translations: %w", err)
	}
	return rows, nil
}

func flatten(stored storage.StoredResult, result models.DocumentResult) []BlockRecord {
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	images.SortNatural(keys)

	var rows []BlockRecord
	for _, key := range keys {
		page := result[key]
		if page == nil {
			continue
		}
		for i, b := range page.Blocks {
			rows = append(rows, BlockRecord{
				Source:      stored.SourceDir,
				Document:    stored.DocumentDir,
				Chapter:     stored.File,
				Page:        key,
				BlockIndex:  i,
				Text:        b.Text,
				Translation: b.Translation,
				X:           b.X,
				Y:           b.Y,
				Width:       b.Width,
				Height:      b.Height,
				SymWidth:    b.SymWidth,
				SymHeight:   b.SymHeight,
				Angle:       b.Angle,
				ImgWidth:    page.ImgWidth,
				ImgHeight:   page.ImgHeight,
			})
		}
	}
	return rows
}

// Export writes every stored block to path. The format follows the extension:
// .parquet, or .jsonl / .json for one JSON object per line.
func Export(store *storage.Provider, path string) (int, error) {
	rows, err := Rows(store)
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		if err := parquet.WriteFile(path, rows); err != nil {
			return 0, fmt.Errorf("failed to write parquet: %w", err)
		}
	case ".jsonl", ".json":
		if err := writeJSONL(path, rows); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", filepath.Ext(path))
	}

	slog.Info("Exported translations", "path", path, "rows", len(rows))
	return len(rows), nil
}

func writeJSONL(path string, rows []BlockRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	enc := json.NewEncoder(file)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			file.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close dataset file: %w", err)
	}
	return nil
}
