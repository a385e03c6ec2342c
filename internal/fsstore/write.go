// Package fsstore writes files that other processes poll (HFpager's spool
// directory, the gateway config) and serializes gateway instances with a lock
// file.
package fsstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
)

var (
	ErrInvalidPath       = errors.New("fsstore: invalid path")
	ErrLockTimeout       = errors.New("fsstore: lock timeout")
	ErrLockUnavailable   = errors.New("fsstore: lock unavailable")
	ErrEncodeFailed      = errors.New("fsstore: encode failed")
	ErrAtomicWriteFailed = errors.New("fsstore: atomic write failed")
)

const (
	defaultDirPerm  os.FileMode = 0o755
	defaultFilePerm os.FileMode = 0o644
)

type FileOptions struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
	// Encoding, when set, converts text from UTF-8 before it is written.
	Encoding encoding.Encoding
}

func (o FileOptions) withDefaults() FileOptions {
	if o.DirPerm == 0 {
		o.DirPerm = defaultDirPerm
	}
	if o.FilePerm == 0 {
		o.FilePerm = defaultFilePerm
	}
	return o
}

func cleanPath(p string) (string, error) {
	if p = strings.TrimSpace(p); p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(p), nil
}

func EnsureDir(dir string, perm os.FileMode) error {
	dir, err := cleanPath(dir)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = defaultDirPerm
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("fsstore ensure dir %s: %w", dir, err)
	}
	return nil
}

// WriteTextAtomic transcodes content with opts.Encoding, if any, and writes it
// with WriteFileAtomic.
func WriteTextAtomic(path, content string, opts FileOptions) error {
	data := []byte(content)
	if opts.Encoding != nil {
		var err error
		if data, err = opts.Encoding.NewEncoder().Bytes(data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrEncodeFailed, path, err)
		}
	}
	return WriteFileAtomic(path, data, opts)
}

// WriteFileAtomic stages content in a dot-prefixed temp file in the target
// directory and renames it into place. Pollers of that directory see either
// nothing or the complete file.
func WriteFileAtomic(path string, content []byte, opts FileOptions) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()
	dir := filepath.Dir(path)
	if err := EnsureDir(dir, opts.DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrAtomicWriteFailed, path, err)
	}
	tmpPath := tmp.Name()
	if err := fillTemp(tmp, content, opts.FilePerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", ErrAtomicWriteFailed, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into %s: %v", ErrAtomicWriteFailed, path, err)
	}
	syncDir(dir)
	return nil
}

func fillTemp(f *os.File, content []byte, perm os.FileMode) error {
	if _, err := f.Write(content); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
