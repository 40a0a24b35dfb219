// Package storage provides blob storage and sandboxed file operations for streamline.
// Filesystem access is restricted to configured directories to prevent path
// traversal through client-influenced keys.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned when a relative path resolves outside the sandbox.
var ErrPathEscapes = errors.New("path escapes sandbox")

// Sandbox provides file operations within a base directory.
// All paths are resolved relative to the base and may not leave it.
type Sandbox struct {
	baseDir string
}

// NewSandbox creates a new Sandbox rooted at the given base directory.
// The base directory is created if it doesn't exist.
func NewSandbox(baseDir string) (*Sandbox, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	return &Sandbox{baseDir: absPath}, nil
}

// BaseDir returns the absolute path to the sandbox base directory.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// ResolvePath resolves a relative path within the sandbox.
func (s *Sandbox) ResolvePath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("%w: %s (absolute paths not allowed)", ErrPathEscapes, relativePath)
	}

	fullPath := filepath.Join(s.baseDir, filepath.Clean(relativePath))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) && absPath != s.baseDir {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, relativePath)
	}

	return absPath, nil
}

// Open opens a file within the sandbox for reading.
func (s *Sandbox) Open(relativePath string) (*os.File, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove removes a file within the sandbox. A missing file is not an error.
func (s *Sandbox) Remove(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// RemoveAll removes a path and all its contents within the sandbox.
func (s *Sandbox) RemoveAll(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if path == s.baseDir {
		return fmt.Errorf("cannot remove sandbox base directory")
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// List returns the entries of a directory within the sandbox.
func (s *Sandbox) List(relativePath string) ([]os.DirEntry, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return entries, nil
}

// Mkdir creates a single new directory and returns its absolute path. It
// fails if the directory already exists.
func (s *Sandbox) Mkdir(relativePath string) (string, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return "", err
	}
	if path == s.baseDir {
		return "", fmt.Errorf("cannot create sandbox base directory")
	}
	if err := os.Mkdir(path, 0750); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	return path, nil
}

// AtomicWriteReader writes data from a reader to a file atomically within the
// sandbox and returns the number of bytes written. Readers never observe a
// partially written target.
func (s *Sandbox) AtomicWriteReader(relativePath string, r io.Reader) (int64, error) {
	targetPath, err := s.ResolvePath(relativePath)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, fmt.Errorf("creating parent directory: %w", err)
	}

	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(targetPath), randomHex(8)))
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0640)
	if err != nil {
		return 0, fmt.Errorf("creating temporary file: %w", err)
	}

	n, err := io.Copy(tempFile, r)
	closeErr := tempFile.Close()

	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("writing to temporary file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("closing temporary file: %w", closeErr)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("renaming to target: %w", err)
	}

	return n, nil
}

// randomHex generates a random hex string of the specified length.
func randomHex(n int) string {
	b := make([]byte, n/2+1)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(b)[:n]
}
