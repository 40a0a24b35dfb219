package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSBlobStore stores blobs as files under a sandboxed root directory.
type FSBlobStore struct {
	sandbox *Sandbox
}

// NewFSBlobStore creates a filesystem blob store rooted at dir.
func NewFSBlobStore(dir string) (*FSBlobStore, error) {
	sb, err := NewSandbox(dir)
	if err != nil {
		return nil, fmt.Errorf("creating blob sandbox: %w", err)
	}
	return &FSBlobStore{sandbox: sb}, nil
}

// Root returns the absolute root directory.
func (s *FSBlobStore) Root() string {
	return s.sandbox.BaseDir()
}

// Put writes the object atomically. A short read fails the put and leaves no file behind.
func (s *FSBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}
	n, err := s.sandbox.AtomicWriteReader(filepath.FromSlash(key), &ctxReader{ctx: ctx, r: src})
	if err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if size >= 0 && n != size {
		_ = s.sandbox.Remove(filepath.FromSlash(key))
		return fmt.Errorf("writing blob %s: short write (%d of %d bytes)", key, n, size)
	}
	return nil
}

// Get opens the blob file.
func (s *FSBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return s.Open(key)
}

// Open opens the blob file for seeking reads, for range requests.
func (s *FSBlobStore) Open(key string) (*os.File, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := s.sandbox.Open(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("opening blob %s: %w", key, err)
	}
	return f, nil
}

// Delete removes the blob file. A missing file is not an error.
func (s *FSBlobStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.sandbox.Remove(filepath.FromSlash(key)); err != nil {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

// ctxReader stops a copy once the context is done.
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

var _ BlobStore = (*FSBlobStore)(nil)
