package images

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/panelator/internal/storage"
)

func TestSortNatural(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "numeric aware",
			input:    []string{"page10.jpg", "page2.jpg", "page1.jpg"},
			expected: []string{"page1.jpg", "page2.jpg", "page10.jpg"},
		},
		{
			name:     "case insensitive",
			input:    []string{"b.png", "A.png", "a2.png"},
			expected: []string{"A.png", "a2.png", "b.png"},
		},
		{
			name:     "leading zeros",
			input:    []string{"010.jpg", "9.jpg", "001.jpg"},
			expected: []string{"001.jpg", "9.jpg", "010.jpg"},
		},
		{
			name:     "prefix shorter first",
			input:    []string{"ch1-extra", "ch1"},
			expected: []string{"ch1", "ch1-extra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]string(nil), tt.input...)
			SortNatural(got)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestLibraryDirectoryPages(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "S", "Title", "Team_Ch 1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"10.png", "2.PNG", "1.jpg", "notes.txt", "cover.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), pngBytes(t, 4, 6), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	lib := NewLibrary(root, nil)
	pages, err := lib.Pages(context.Background(), storage.Chapter{Source: "S", Title: "Title", Name: "Ch 1", Scanlator: "Team"})
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	var keys []string
	for _, p := range pages {
		keys = append(keys, p.Key)
	}
	expected := []string{"1.jpg", "2.PNG", "10.png", "cover.webp"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected %v, got %v", expected, keys)
	}

	data, err := ReadPage(context.Background(), pages[0])
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	w, h, err := Size(data)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if w != 4 || h != 6 {
		t.Errorf("Expected 4x6, got %dx%d", w, h)
	}
}

func TestLibraryArchivePages(t *testing.T) {
	root := t.TempDir()
	docDir := filepath.Join(root, "S", "Title")
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(filepath.Join(docDir, "Ch 2.cbz"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"p11.png", "p3.png", "ComicInfo.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(pngBytes(t, 2, 3)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	lib := NewLibrary(root, nil)
	pages, err := lib.Pages(context.Background(), storage.Chapter{Source: "S", Title: "Title", Name: "Ch 2"})
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 2 || pages[0].Key != "p3.png" || pages[1].Key != "p11.png" {
		t.Fatalf("Unexpected pages %+v", pages)
	}
	data, err := ReadPage(context.Background(), pages[1])
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	if w, h, _ := Size(data); w != 2 || h != 3 {
		t.Errorf("Expected 2x3, got %dx%d", w, h)
	}

	chapters, err := lib.Chapters("S", "Title")
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if !reflect.DeepEqual(chapters, []string{"Ch 2"}) {
		t.Errorf("Expected [Ch 2], got %v", chapters)
	}
}

func TestLibraryArchiveDuplicateNames(t *testing.T) {
	root := t.TempDir()
	docDir := filepath.Join(root, "S", "Title")
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(filepath.Join(docDir, "Ch 1.cbz"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"part1/01.png", "part2/01.png", "cover.png"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(pngBytes(t, 2, 3)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	pages, err := NewLibrary(root, nil).Pages(context.Background(), storage.Chapter{Source: "S", Title: "Title", Name: "Ch 1"})
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	keys := map[string]bool{}
	for _, p := range pages {
		keys[p.Key] = true
	}
	expected := []string{"part1/01.png", "part2/01.png", "cover.png"}
	if len(pages) != len(expected) || len(keys) != len(expected) {
		t.Fatalf("Expected %d distinct keys, got %+v", len(expected), keys)
	}
	for _, key := range expected {
		if !keys[key] {
			t.Errorf("Expected key %s, got %v", key, keys)
		}
	}
}

func TestLibraryMissingChapter(t *testing.T) {
	lib := NewLibrary(t.TempDir(), nil)
	_, err := lib.Pages(context.Background(), storage.Chapter{Source: "S", Title: "T", Name: "missing"})
	if !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("Expected ErrChapterNotFound, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lib.Pages(ctx, storage.Chapter{Source: "S", Title: "T", Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
