// Package fs stores uploaded photos on the local filesystem. The HTTP layer
// serves the directory under the configured public prefix.
package fs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adeilh/gallery/blob"
)

var ErrMissingDir = errors.New("fs: directory is required")

// Store writes each object to Dir/name.
type Store struct {
	dir     string
	baseURL string
}

// New creates dir when needed. baseURL is the public address the directory
// is served under, e.g. "http://localhost:3000/uploads".
func New(dir, baseURL string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrMissingDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs: create %s: %w", dir, err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory objects are written to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) Put(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := blob.Validate(name, data); err != nil {
		return "", err
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("fs: invalid object name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("fs: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("fs: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("fs: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("fs: rename %s: %w", name, err)
	}
	return s.baseURL + "/" + url.PathEscape(name), nil
}
