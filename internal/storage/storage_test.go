package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

func TestResultFileName(t *testing.T) {
	tests := []struct {
		name      string
		chapter   string
		scanlator string
		expected  string
	}{
		{name: "with scanlator", chapter: "Ch. 12", scanlator: "TeamX", expected: "TeamX_Ch. 12.json"},
		{name: "without scanlator", chapter: "Ch. 12", scanlator: "", expected: "Ch. 12"},
		{name: "blank scanlator", chapter: "Ch. 12", scanlator: "   ", expected: "Ch. 12"},
		{name: "blank chapter", chapter: "  ", scanlator: "", expected: "Chapter"},
		{name: "blank chapter with scanlator", chapter: "", scanlator: "T", expected: "T_Chapter.json"},
		{name: "sanitized", chapter: "Vol 1: Ch 2?", scanlator: "A/B", expected: "A_B_Vol 1_ Ch 2_.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultFileName(tt.chapter, tt.scanlator); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "One Piece", expected: "One Piece"},
		{name: "reserved characters", input: `a"b*c<d>e|f\g`, expected: "a_b_c_d_e_f_g"},
		{name: "control characters", input: "a\tb\x7fc", expected: "a_b_c"},
		{name: "trimmed dots and spaces", input: " ..name.. ", expected: "name"},
		{name: "empty", input: " . ", expected: "(invalid)"},
		{name: "unicode kept", input: "全职高手", expected: "全职高手"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFilename(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}

	long := ValidFilename(strings.Repeat("漫", 300))
	if n := len([]rune(long)); n != 240 {
		t.Errorf("Expected 240 runes, got %d", n)
	}
}

func sampleResult() models.DocumentResult {
	return models.DocumentResult{
		"001.jpg": {
			Blocks: []models.TextBlock{
				{Text: "你好", Translation: "Hello", X: 10.5, Y: 20.25, Width: 100, Height: 35, SymWidth: 12, SymHeight: 14, Angle: 1.5},
			},
			ImgWidth:  800,
			ImgHeight: 1200,
		},
		"002.jpg": {Blocks: []models.TextBlock{}, ImgWidth: 800, ImgHeight: 1100},
	}
}

func TestRoundTrip(t *testing.T) {
	p := New(t.TempDir(), nil)
	c := Chapter{Source: "MangaDex (EN)", Title: "Title: One", Name: "Ch 1", Scanlator: "Team"}

	dir, err := p.DocumentDir(c.Title, c.Source)
	if err != nil {
		t.Fatalf("DocumentDir() error = %v", err)
	}
	if err := p.WriteResult(dir, ResultFileName(c.Name, c.Scanlator), sampleResult()); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if !p.Exists(c) {
		t.Fatalf("Expected result file to exist")
	}

	got, err := p.ReadResult(c)
	if err != nil {
		t.Fatalf("ReadResult() error = %v", err)
	}
	want := sampleResult()
	if len(got) != len(want) {
		t.Fatalf("Expected %d pages, got %d", len(want), len(got))
	}
	for key, wp := range want {
		gp, ok := got[key]
		if !ok {
			t.Fatalf("Missing page %s", key)
		}
		if !near(gp.ImgWidth, wp.ImgWidth) || !near(gp.ImgHeight, wp.ImgHeight) {
			t.Errorf("Page %s: Expected size %vx%v, got %vx%v", key, wp.ImgWidth, wp.ImgHeight, gp.ImgWidth, gp.ImgHeight)
		}
		if len(gp.Blocks) != len(wp.Blocks) {
			t.Fatalf("Page %s: Expected %d blocks, got %d", key, len(wp.Blocks), len(gp.Blocks))
		}
		for i, wb := range wp.Blocks {
			gb := gp.Blocks[i]
			if gb.Text != wb.Text || gb.Translation != wb.Translation {
				t.Errorf("Block %d: Expected %q/%q, got %q/%q", i, wb.Text, wb.Translation, gb.Text, gb.Translation)
			}
			pairs := [][2]float32{
				{gb.X, wb.X}, {gb.Y, wb.Y}, {gb.Width, wb.Width}, {gb.Height, wb.Height},
				{gb.SymWidth, wb.SymWidth}, {gb.SymHeight, wb.SymHeight}, {gb.Angle, wb.Angle},
			}
			for _, pair := range pairs {
				if !near(pair[0], pair[1]) {
					t.Errorf("Block %d: Expected %v, got %v", i, pair[1], pair[0])
				}
			}
		}
	}
}

func TestArtifactFieldNames(t *testing.T) {
	root := t.TempDir()
	p := New(root, nil)
	dir, err := p.DocumentDir("T", "S")
	if err != nil {
		t.Fatalf("DocumentDir() error = %v", err)
	}
	if err := p.WriteResult(dir, "c", sampleResult()); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "c"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, field := range []string{`"blocks"`, `"imgWidth"`, `"imgHeight"`, `"text"`, `"translation"`, `"symWidth"`, `"symHeight"`, `"angle"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Expected field %s in artifact", field)
		}
	}
}

func TestReadResultHealsCorruptFile(t *testing.T) {
	p := New(t.TempDir(), nil)
	c := Chapter{Source: "S", Title: "T", Name: "Ch 1"}
	dir, err := p.DocumentDir(c.Title, c.Source)
	if err != nil {
		t.Fatalf("DocumentDir() error = %v", err)
	}
	path := filepath.Join(dir, ResultFileName(c.Name, c.Scanlator))
	if err := os.WriteFile(path, []byte(`{"001.jpg": {"blocks": [`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := p.ReadResult(c)
	if err != nil {
		t.Fatalf("ReadResult() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty result, got %d pages", len(got))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected corrupt file to be deleted, stat err = %v", err)
	}
	if p.Exists(c) {
		t.Errorf("Expected chapter to no longer be translated")
	}
}

func TestDocumentDirLocationError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := New(blocker, nil)
	_, err := p.DocumentDir("T", "S")
	var locErr *LocationError
	if !errors.As(err, &locErr) {
		t.Fatalf("Expected LocationError, got %v", err)
	}
	if locErr.Root != blocker {
		t.Errorf("Expected root %s, got %s", blocker, locErr.Root)
	}
}

func TestDeleteAndWalk(t *testing.T) {
	p := New(t.TempDir(), nil)
	chapters := []Chapter{
		{Source: "S1", Title: "A", Name: "1"},
		{Source: "S1", Title: "A", Name: "2"},
		{Source: "S2", Title: "B", Name: "1", Scanlator: "X"},
	}
	for _, c := range chapters {
		dir, err := p.DocumentDir(c.Title, c.Source)
		if err != nil {
			t.Fatalf("DocumentDir() error = %v", err)
		}
		if err := p.WriteResult(dir, ResultFileName(c.Name, c.Scanlator), sampleResult()); err != nil {
			t.Fatalf("WriteResult() error = %v", err)
		}
	}

	count := func() int {
		n := 0
		if err := p.Walk(func(StoredResult, models.DocumentResult) error { n++; return nil }); err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		return n
	}
	if n := count(); n != 3 {
		t.Fatalf("Expected 3 results, got %d", n)
	}

	if err := p.DeleteResult(chapters[0]); err != nil {
		t.Fatalf("DeleteResult() error = %v", err)
	}
	if p.Exists(chapters[0]) {
		t.Errorf("Expected chapter result removed")
	}
	if err := p.DeleteDocument("B", "S2"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, ok := p.FindDocumentDir("B", "S2"); ok {
		t.Errorf("Expected document dir removed")
	}
	if _, ok := p.FindSourceDir("S2"); ok {
		t.Errorf("Expected empty source dir removed")
	}
	if _, ok := p.FindSourceDir("S1"); !ok {
		t.Errorf("Expected source dir with results to remain")
	}
	if n := count(); n != 1 {
		t.Errorf("Expected 1 result, got %d", n)
	}
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}
