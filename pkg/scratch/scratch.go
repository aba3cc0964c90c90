// Package scratch owns the temporary directory that generated images pass
// through between materialization and cleanup.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// FilePrefix starts every file the service writes into the scratch dir
	FilePrefix = "generated_image_"
	// FileExt is the extension of materialized images
	FileExt = ".jpg"
)

// ErrOutsideDir is returned when asked to remove a path the dir doesn't own
var ErrOutsideDir = errors.New("path is outside the scratch directory")

// Dir is a scratch directory shared by all sessions. File names are random
// so concurrent requests never collide; each request removes only its own file.
type Dir struct {
	root string
}

// New creates the directory (if needed) and returns a handle to it
func New(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("scratch directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path
func (d *Dir) Root() string {
	return d.root
}

// NewImagePath returns a fresh, unused file path for a generated image
func (d *Dir) NewImagePath() string {
	return filepath.Join(d.root, FilePrefix+uuid.New().String()+FileExt)
}

// Contains reports whether path names a file directly inside the dir
func (d *Dir) Contains(path string) bool {
	if path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == d.root
}

// Remove deletes a file owned by the dir. A file that is already gone is
// not an error.
func (d *Dir) Remove(path string) error {
	if !d.Contains(path) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scratch file: %w", err)
	}
	return nil
}

// List returns the generated files currently in the dir
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isGenerated(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(d.root, e.Name()))
	}
	return files, nil
}

// Sweep deletes generated files last modified more than maxAge ago. These
// are left behind only when the process died between materialization and
// cleanup.
func (d *Dir) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !isGenerated(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(d.root, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to sweep scratch file")
			continue
		}
		removed++
	}

	return removed, nil
}

func isGenerated(name string) bool {
	return strings.HasPrefix(name, FilePrefix)
}
