// Package storage abstracts where model artifacts and archived recordings
// live. Local disk, S3-compatible object stores and an in-memory store all
// implement FileStore.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
)

// FileStore is a minimal file-oriented store.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. Missing files return an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates the named file. Data is committed when the
	// returned writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadFile reads a whole file from fs.
func ReadFile(ctx context.Context, fs FileStore, name string) ([]byte, error) {
	rc, err := fs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// WriteFile replaces a file in fs with data.
func WriteFile(ctx context.Context, fs FileStore, name string, data []byte) error {
	wc, err := fs.Write(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return wc.Close()
}

// Join resolves rel against the directory of base, the way a descriptor
// refers to sibling files. Absolute rel paths are returned cleaned.
func Join(base, rel string) string {
	if path.IsAbs(rel) {
		return path.Clean(rel)[1:]
	}
	return path.Join(path.Dir(base), rel)
}
