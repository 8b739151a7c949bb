// Package blob stores uploaded file contents.
//
// A Store hands back an opaque reference for every Put; references are what
// token records keep in their file lists. Local and S3 backends produce the
// same "<prefix>/<name>" shape, so records survive a backend switch once the
// objects have been copied across.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Errors returned by every backend.
var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

// Store persists file contents.
type Store interface {
	// Put stores r under name and returns the reference to keep.
	Put(ctx context.Context, name string, r io.Reader) (string, error)

	// Open returns the contents for a reference produced by Put.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

const maxNameLength = 255

// validateName accepts a single path element made of safe characters.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name longer than %d bytes: %w", maxNameLength, ErrInvalidName)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("name %q: %w", name, ErrInvalidName)
	}
	return nil
}
