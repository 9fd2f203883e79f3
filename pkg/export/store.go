package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store errors.
var (
	ErrTooLarge    = errors.New("export: document exceeds maximum size")
	ErrInvalidName = errors.New("export: invalid object name")
)

// Location identifies a stored document.
type Location struct {
	Store string // store kind: "disk" or "s3"
	Name  string // object name within the store
	URL   string // file path or s3:// URL
	Size  int64
}

// Store persists rendered documents.
type Store interface {
	// Put stores the contents of r under name.
	Put(ctx context.Context, name, contentType string, r io.Reader) (Location, error)

	// Kind names the store in logs and metrics.
	Kind() string
}

// DiskStore writes documents into a directory.
type DiskStore struct {
	dir     string
	maxSize int64
}

// NewDiskStore creates the directory if needed. maxSize 0 means no limit.
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, maxSize: maxSize}, nil
}

// Kind returns "disk".
func (s *DiskStore) Kind() string { return "disk" }

// Put writes r to a temporary file and renames it into place, so readers
// never observe a partial document.
func (s *DiskStore) Put(ctx context.Context, name, contentType string, r io.Reader) (Location, error) {
	if err := validName(name); err != nil {
		return Location{}, err
	}
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	f, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return Location{}, err
	}
	tmp := f.Name()
	fail := func(err error) (Location, error) {
		f.Close()
		os.Remove(tmp)
		return Location{}, err
	}

	reader := r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1) // +1 to detect overflow
	}
	written, err := io.Copy(f, reader)
	if err != nil {
		return fail(err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		return fail(ErrTooLarge)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Location{}, err
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Location{}, err
	}
	return Location{Store: s.Kind(), Name: name, URL: path, Size: written}, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
