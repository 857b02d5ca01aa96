// Package pack writes conversion results to an output directory and
// optionally bundles the directory into a zip archive.
//
// Markdown files are named after the source document. A name collision
// (two sources with the same base name) gets a numeric suffix; existing
// output is never silently overwritten within one run.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hazyhaar/echoflow/docconv"
)

// Writer lays out one run's output tree. Safe for concurrent Write
// calls from batch workers.
type Writer struct {
	dir string

	mu   sync.Mutex
	used map[string]bool
}

// NewWriter creates the output directory and a Writer over it.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("pack: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pack: create output dir: %w", err)
	}
	return &Writer{dir: dir, used: make(map[string]bool)}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores the result's markdown (and extracted images) and returns
// the markdown file's path.
func (w *Writer) Write(doc docconv.Document, res docconv.Result) (string, error) {
	if !res.Success {
		return "", fmt.Errorf("pack: refusing to write failed result for %s", doc.Path)
	}

	name := w.reserve(baseName(doc.Path))
	markdown := res.Markdown

	if len(res.Images) > 0 {
		imgDir := filepath.Join(w.dir, "images")
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return "", fmt.Errorf("pack: create images dir: %w", err)
		}
		for _, img := range res.Images {
			// Images from different documents share one directory, so
			// prefix with the document name and point the markdown at
			// the new location.
			stored := name + "_" + img.Filename
			if err := os.WriteFile(filepath.Join(imgDir, stored), img.Data, 0o644); err != nil {
				return "", fmt.Errorf("pack: write image %s: %w", stored, err)
			}
			markdown = strings.ReplaceAll(markdown, "images/"+img.Filename, "images/"+stored)
		}
	}

	outPath := filepath.Join(w.dir, name+".md")
	if err := os.WriteFile(outPath, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("pack: write markdown: %w", err)
	}
	return outPath, nil
}

// reserve claims a unique output base name, appending -1, -2, ... on
// collision.
func (w *Writer) reserve(base string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := base
	for i := 1; w.used[name]; i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	w.used[name] = true
	return name
}

func baseName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" || base == "." {
		return "document"
	}
	return base
}

// CreateZip bundles srcDir into a zip archive at zipPath, storing paths
// relative to srcDir. The archive itself is excluded when it lands
// inside srcDir.
func CreateZip(srcDir, zipPath string) error {
	absZip, err := filepath.Abs(zipPath)
	if err != nil {
		return fmt.Errorf("pack: resolve zip path: %w", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("pack: create zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if abs, aerr := filepath.Abs(path); aerr == nil && abs == absZip {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("pack: zip %s: %w", srcDir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("pack: finalize zip: %w", err)
	}
	return f.Sync()
}
