// Package fsblob serves media bytes from a local directory tree.
package fsblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mediagate/internal/domain"
)

// Store reads blobs from files under a root directory. Resource paths
// are storage keys relative to the root; anything escaping the root is
// treated as missing.
type Store struct {
	root string
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) resolve(key string) (string, error) {
	if key == "" || !filepath.IsLocal(key) {
		return "", domain.ErrNotFound
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Size implements media.BlobStore.
func (s *Store) Size(_ context.Context, res domain.Resource) (int64, error) {
	name, err := s.resolve(res.Path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("stat blob %q: %w", res.Path, err)
	}
	if info.IsDir() {
		return 0, domain.ErrNotFound
	}
	return info.Size(), nil
}

// Open implements media.BlobStore. The returned reader covers exactly
// bytes [start, end]; closing it releases the file handle.
func (s *Store) Open(_ context.Context, res domain.Resource, start, end int64) (io.ReadCloser, error) {
	name, err := s.resolve(res.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("open blob %q: %w", res.Path, err)
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek blob %q to %d: %w", res.Path, start, err)
		}
	}
	return &sectionReader{
		Reader: io.LimitReader(f, end-start+1),
		file:   f,
	}, nil
}

// sectionReader bounds reads to the requested interval while keeping
// Close wired to the underlying file.
type sectionReader struct {
	io.Reader
	file *os.File
}

func (r *sectionReader) Close() error {
	return r.file.Close()
}
