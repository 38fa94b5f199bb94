package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/models"
)

const noteExt = ".md"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the note directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute note directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: absolute path %s", apperr.ErrInvalidArguments, rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("%w: path escapes root: %s", apperr.ErrInvalidArguments, rel)
	}
	return abs, nil
}

// List returns the .md files under dir, sorted by path.
func (f *FS) List(dir string, recursive bool) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	if recursive {
		out, err = f.walk(base)
	} else {
		out, err = f.readDir(base)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	slices.SortFunc(out, func(a, b models.NoteMetadata) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

func (f *FS) walk(base string) ([]models.NoteMetadata, error) {
	var out []models.NoteMetadata
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), noteExt) {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, f.metadata(p, info))
		return nil
	})
	return out, err
}

func (f *FS) readDir(base string) ([]models.NoteMetadata, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), noteExt) {
			continue
		}
		p := filepath.Join(base, e.Name())
		// Stat follows symlinks so linked notes are listed like regular ones.
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, f.metadata(p, info))
	}
	return out, nil
}

func (f *FS) metadata(abs string, info fs.FileInfo) models.NoteMetadata {
	rel, _ := filepath.Rel(f.root, abs)
	return models.NoteMetadata{
		Path:      rel,
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}
}

// Read returns the raw bytes of a note.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces a note: temp file in the same directory, then rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}
