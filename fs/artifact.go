// Package fs provides file-based storage for export artifacts.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/harvest"
)

// Ensure ArtifactWriter implements harvest.ArtifactWriter at compile time.
var _ harvest.ArtifactWriter = (*ArtifactWriter)(nil)

// ArtifactWriter writes artifacts into a directory. Each file is written to
// a temporary name and renamed into place, so readers never observe a
// partially written artifact.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates a new ArtifactWriter that writes to dir.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir}
}

// WriteArtifact writes a to the output directory, replacing any file with
// the same name, and returns the file's path.
func (w *ArtifactWriter) WriteArtifact(ctx context.Context, a *harvest.Artifact) (string, error) {
	if a == nil {
		return "", harvest.Errorf(harvest.EINVALID, "artifact required")
	}
	name, err := cleanFilename(a.Filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	// Removing after a successful rename is a no-op error.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	return path, nil
}

// cleanFilename rejects names that would escape the output directory.
func cleanFilename(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", harvest.Errorf(harvest.EINVALID, "invalid artifact filename %q", name)
	}
	return name, nil
}
