package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores blobs as plain files under a root directory.
// References are the file paths relative to the working directory, which
// matches the "files/<name>" entries written by the earlier bot.
type Local struct {
	root string
}

var _ Store = (*Local)(nil)

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: root dir is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &Local{root: root}, nil
}

// Put writes r to a temp file in the root and renames it into place, so a
// reader never observes a partial file.
func (l *Local) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blob: write %q: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blob: sync %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("blob: close %q: %w", name, err)
	}

	ref := filepath.Join(l.root, name)
	if err := os.Rename(tmp.Name(), ref); err != nil {
		return "", fmt.Errorf("blob: commit %q: %w", name, err)
	}
	return filepath.ToSlash(ref), nil
}

// Open opens the file a reference points at.
func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.FromSlash(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("blob %q: %w", ref, err)
	}
	return f, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
