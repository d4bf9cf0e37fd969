// Package storage keeps media objects on a local or mounted filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) path(ref string) (string, error) {
	rel := filepath.FromSlash(ref)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: storage ref %q escapes root", domain.ErrInvalidInput, ref)
	}
	return filepath.Join(f.root, rel), nil
}

// Put writes through a temp file and renames it into place, so readers never
// see a partial object.
func (f *Filesystem) Put(ctx context.Context, ref string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (f *Filesystem) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	target, err := f.path(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	return file, err
}

func (f *Filesystem) Delete(_ context.Context, ref string) error {
	target, err := f.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
