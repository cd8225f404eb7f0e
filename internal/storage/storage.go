// Package storage lays out translation results on disk:
// <root>/<source>/<title>/<chapter file>.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

const (
	maxFilenameRunes = 240
	invalidName      = "(invalid)"
	defaultChapter   = "Chapter"
)

// LocationError is returned when the result directory for a document cannot
// be created. Root is the configured location shown to the user.
type LocationError struct {
	Root string
	Err  error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("invalid translation location %q: %v", e.Root, e.Err)
}

func (e *LocationError) Unwrap() error { return e.Err }

// Chapter identifies a persisted result.
type Chapter struct {
	Source    string
	Title     string
	Name      string
	Scanlator string
}

// Provider resolves and manages result files under a root directory.
type Provider struct {
	root string
	// mu serializes writes and deletes so a reader never observes a half
	// removed document directory.
	mu  sync.RWMutex
	log *slog.Logger
}

// New returns a provider rooted at root.
func New(root string, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{root: root, log: log}
}

// Root returns the configured root directory.
func (p *Provider) Root() string { return p.root }

// DocumentDir returns the directory for a document, creating it if needed.
func (p *Provider) DocumentDir(title, source string) (string, error) {
	dir := filepath.Join(p.root, ValidFilename(source), ValidFilename(title))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.log.Error("Invalid translation directory", "root", p.root, "err", err)
		return "", &LocationError{Root: p.root, Err: err}
	}
	return dir, nil
}

// FindSourceDir returns the directory of a source if it exists.
func (p *Provider) FindSourceDir(source string) (string, bool) {
	return existingDir(filepath.Join(p.root, ValidFilename(source)))
}

// FindDocumentDir returns the directory of a document if it exists.
func (p *Provider) FindDocumentDir(title, source string) (string, bool) {
	return existingDir(filepath.Join(p.root, ValidFilename(source), ValidFilename(title)))
}

// FindResultFile returns the result file of a chapter if it exists.
func (p *Provider) FindResultFile(c Chapter) (string, bool) {
	dir, ok := p.FindDocumentDir(c.Title, c.Source)
	if !ok {
		return "", false
	}
	path := filepath.Join(dir, ResultFileName(c.Name, c.Scanlator))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// Exists reports whether a chapter already has a persisted result.
func (p *Provider) Exists(c Chapter) bool {
	_, ok := p.FindResultFile(c)
	return ok
}

// ResultFileName returns the file name of a chapter result. A scanlator is
// prefixed and gets a .json extension; otherwise the bare chapter name is used.
func ResultFileName(name, scanlator string) string {
	if strings.TrimSpace(name) == "" {
		name = defaultChapter
	}
	if strings.TrimSpace(scanlator) != "" {
		return ValidFilename(scanlator + "_" + name + ".json")
	}
	return ValidFilename(name)
}

// ValidFilename makes name safe for FAT-like filesystems.
func ValidFilename(name string) string {
	name = strings.Trim(name, ". ")
	if name == "" {
		return invalidName
	}
	var sb strings.Builder
	n := 0
	for _, r := range name {
		if n == maxFilenameRunes {
			break
		}
		if validFilenameRune(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
		n++
	}
	return sb.String()
}

func validFilenameRune(r rune) bool {
	if r < 0x20 || r == 0x7f {
		return false
	}
	switch r {
	case '"', '*', '/', ':', '<', '>', '?', '\\', '|':
		return false
	}
	return true
}

// WriteResult stores result as dir/file, replacing any previous file atomically.
func (p *Provider) WriteResult(dir, file string, result models.DocumentResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close result: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, file)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}

// ReadResult loads a chapter result. A file that cannot be parsed is deleted
// and an empty result is returned.
func (p *Provider) ReadResult(c Chapter) (models.DocumentResult, error) {
	path, ok := p.FindResultFile(c)
	if !ok {
		return models.DocumentResult{}, nil
	}
	return p.readFile(path)
}

func (p *Provider) readFile(path string) (models.DocumentResult, error) {
	p.mu.RLock()
	data, err := os.ReadFile(path)
	p.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var result models.DocumentResult
	if err := json.Unmarshal(data, &result); err != nil || result == nil {
		p.log.Warn("Removing corrupt translation", "path", path, "err", err)
		p.mu.Lock()
		rmErr := os.Remove(path)
		p.mu.Unlock()
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			p.log.Error("Failed to remove corrupt translation", "path", path, "err", rmErr)
		}
		return models.DocumentResult{}, nil
	}
	for key, page := range result {
		if page == nil {
			delete(result, key)
		}
	}
	return result, nil
}

// DeleteResult removes the result of one chapter. Missing files are ignored.
func (p *Provider) DeleteResult(c Chapter) error {
	path, ok := p.FindResultFile(c)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// DeleteDocument removes every result of a document, and the source
// directory too when nothing else is left in it.
func (p *Provider) DeleteDocument(title, source string) error {
	dir, ok := p.FindDocumentDir(title, source)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	sourceDir, ok := p.FindSourceDir(source)
	if !ok {
		return nil
	}
	if entries, err := os.ReadDir(sourceDir); err == nil && len(entries) == 0 {
		if err := os.Remove(sourceDir); err != nil {
			p.log.Warn("Failed to remove empty source directory", "path", sourceDir, "err", err)
		}
	}
	return nil
}

// StoredResult is one result file found by Walk.
type StoredResult struct {
	SourceDir   string
	DocumentDir string
	File        string
	Path        string
}

// Walk calls fn for every result file under the root, in lexical order.
// Unreadable files are healed the same way ReadResult does.
func (p *Provider) Walk(fn func(StoredResult, models.DocumentResult) error) error {
	sources, err := os.ReadDir(p.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read root: %w", err)
	}
	for _, s := range sources {
		if !s.IsDir() {
			continue
		}
		docs, err := os.ReadDir(filepath.Join(p.root, s.Name()))
		if err != nil {
			return fmt.Errorf("read source dir: %w", err)
		}
		for _, d := range docs {
			if !d.IsDir() {
				continue
			}
			dir := filepath.Join(p.root, s.Name(), d.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("read document dir: %w", err)
			}
			for _, f := range files {
				if f.IsDir() || strings.HasPrefix(f.Name(), ".tmp-") {
					continue
				}
				path := filepath.Join(dir, f.Name())
				result, err := p.readFile(path)
				if err != nil {
					return err
				}
				if len(result) == 0 {
					continue
				}
				stored := StoredResult{SourceDir: s.Name(), DocumentDir: d.Name(), File: f.Name(), Path: path}
				if err := fn(stored, result); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func existingDir(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}
