// Package snapshot persists the latest standings document to a single file.
//
// Save goes through atomic.WriteFile, which writes a temp file beside the
// target and replaces the target with it, so a concurrent reader sees either
// the previous or the new file, never a partial one. Only one version is kept.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/albapepper/scoracle-standings/internal/standings"
)

const fileMode = 0o644

// WriteError reports a failed Save. The previous snapshot is untouched.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("save snapshot %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Info describes the file currently on disk.
type Info struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is a single-slot snapshot file.
type Store struct {
	path string

	// write is swapped in tests to simulate a failing filesystem.
	write func(path string, r io.Reader) error
}

// New returns a store writing to path, creating its directory if needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Store{path: abs, write: atomic.WriteFile}, nil
}

// Path is the absolute snapshot path.
func (s *Store) Path() string { return s.path }

// Dir is the directory holding the snapshot.
func (s *Store) Dir() string { return filepath.Dir(s.path) }

// Name is the snapshot file name, which is also its URL path.
func (s *Store) Name() string { return filepath.Base(s.path) }

// Save replaces the snapshot with doc.
func (s *Store) Save(doc *standings.Document) error {
	if doc == nil {
		return &WriteError{Op: "encode", Path: s.path, Err: errors.New("nil document")}
	}
	data, err := doc.MarshalIndent()
	if err != nil {
		return &WriteError{Op: "encode", Path: s.path, Err: err}
	}
	return s.WriteBytes(data)
}

// WriteBytes atomically replaces the snapshot with data.
func (s *Store) WriteBytes(data []byte) error {
	if err := s.write(s.path, bytes.NewReader(data)); err != nil {
		return &WriteError{Op: "replace", Path: s.path, Err: err}
	}
	// The temp file starts at 0600 and later writes inherit the target's
	// mode, so only the first save changes anything here.
	if err := os.Chmod(s.path, fileMode); err != nil {
		return &WriteError{Op: "chmod", Path: s.path, Err: err}
	}
	return nil
}

// Load returns the current snapshot bytes. The error satisfies
// errors.Is(err, os.ErrNotExist) before the first successful Save.
func (s *Store) Load() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Stat describes the current snapshot file.
func (s *Store) Stat() (Info, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return Info{}, err
	}
	return Info{Path: s.path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}
