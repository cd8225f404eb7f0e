// Package images reads chapter pages from a download library laid out as
// <library>/<source>/<title>/<chapter dir or chapter.cbz>.
package images

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/panelator/internal/storage"
)

// ErrChapterNotFound is returned when neither a directory nor an archive exists.
var ErrChapterNotFound = errors.New("chapter pages not found")

var pageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Page is one page image. Open returns a fresh reader each call.
type Page struct {
	Key  string
	Open func() (io.ReadCloser, error)
}

// Source yields the ordered pages of a chapter.
type Source interface {
	Pages(ctx context.Context, chapter storage.Chapter) ([]Page, error)
}

// Library is a Source over a local download directory.
type Library struct {
	root string
	log  *slog.Logger
}

// NewLibrary returns a Library rooted at root.
func NewLibrary(root string, log *slog.Logger) *Library {
	if log == nil {
		log = slog.Default()
	}
	return &Library{root: root, log: log}
}

// ChapterDirName returns the on-disk name of a chapter download, without
// any archive extension.
func ChapterDirName(name, scanlator string) string {
	if strings.TrimSpace(name) == "" {
		name = "Chapter"
	}
	if strings.TrimSpace(scanlator) != "" {
		return storage.ValidFilename(scanlator + "_" + name)
	}
	return storage.ValidFilename(name)
}

func (l *Library) documentDir(source, title string) string {
	return filepath.Join(l.root, storage.ValidFilename(source), storage.ValidFilename(title))
}

// Pages lists the images of a chapter in natural order.
func (l *Library) Pages(ctx context.Context, chapter storage.Chapter) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(l.documentDir(chapter.Source, chapter.Title), ChapterDirName(chapter.Name, chapter.Scanlator))

	if info, err := os.Stat(base); err == nil && info.IsDir() {
		l.log.Debug("Reading chapter directory", "path", base)
		return dirPages(base)
	}
	if info, err := os.Stat(base + ".cbz"); err == nil && !info.IsDir() {
		l.log.Debug("Reading chapter archive", "path", base+".cbz")
		return archivePages(base + ".cbz")
	}
	return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, base)
}

func dirPages(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chapter dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsPage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	SortNatural(names)

	pages := make([]Page, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		pages = append(pages, Page{
			Key:  name,
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return pages, nil
}

// archivePages reads the archive index once; each Open reopens the archive so
// pages can be read concurrently.
func archivePages(archive string) ([]Page, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open chapter archive: %w", err)
	}
	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !IsPage(f.Name) {
			continue
		}
		names = append(names, f.Name)
	}
	zr.Close()

	SortNatural(names)
	keys := archiveKeys(names)
	pages := make([]Page, 0, len(names))
	for i, name := range names {
		pages = append(pages, Page{
			Key:  keys[i],
			Open: func() (io.ReadCloser, error) { return openArchiveEntry(archive, name) },
		})
	}
	return pages, nil
}

// archiveKeys keys pages by file name, falling back to the in-archive path
// for names that occur in more than one folder.
func archiveKeys(names []string) []string {
	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[path.Base(name)]++
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = path.Base(name)
		if counts[keys[i]] > 1 {
			keys[i] = name
		}
	}
	return keys
}

type archiveEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (e *archiveEntry) Close() error {
	err := e.ReadCloser.Close()
	if cerr := e.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

func openArchiveEntry(path, name string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open chapter archive: %w", err)
	}
	rc, err := zr.Open(name)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &archiveEntry{ReadCloser: rc, archive: zr}, nil
}

// IsPage reports whether name has a page image extension.
func IsPage(name string) bool {
	return pageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ReadPage reads a page fully, checking ctx before the read.
func ReadPage(ctx context.Context, p Page) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", p.Key, err)
	}
	return data, nil
}

// Size decodes only the image header and returns its dimensions.
func Size(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Document is a downloaded title in the library.
type Document struct {
	Source string
	Title  string
}

// Documents lists every <source>/<title> directory.
func (l *Library) Documents() ([]Document, error) {
	sources, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	var docs []Document
	for _, s := range sources {
		if !s.IsDir() {
			continue
		}
		titles, err := os.ReadDir(filepath.Join(l.root, s.Name()))
		if err != nil {
			return nil, fmt.Errorf("read source dir: %w", err)
		}
		for _, t := range titles {
			if t.IsDir() {
				docs = append(docs, Document{Source: s.Name(), Title: t.Name()})
			}
		}
	}
	return docs, nil
}

// Chapters lists the chapter downloads of a document in natural order.
// Scanlator prefixes are not split off; the name is the on-disk name.
func (l *Library) Chapters(source, title string) ([]string, error) {
	entries, err := os.ReadDir(l.documentDir(source, title))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrChapterNotFound, source, title)
		}
		return nil, fmt.Errorf("read document dir: %w", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			if !strings.EqualFold(filepath.Ext(name), ".cbz") {
				continue
			}
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	SortNatural(names)
	return names, nil
}

// SortNatural sorts names case-insensitively with embedded numbers compared
// by value, so "page2" sorts before "page10".
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})
}
