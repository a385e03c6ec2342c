package fsstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestBuildLockPath(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	got, err := BuildLockPath(root, "gateway")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}
	want := filepath.Join(root, "gateway.lck")
	if got != want {
		t.Fatalf("BuildLockPath() = %q, want %q", got, want)
	}
}

func TestBuildLockPathInvalidKey(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	invalid := []string{
		"",
		"Gateway",
		"gateway/main",
		".gateway",
		"gateway.",
		"gateway main",
	}
	for _, key := range invalid {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			_, err := BuildLockPath(root, key)
			if err == nil {
				t.Fatalf("BuildLockPath(%q) expected error", key)
			}
			if !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("BuildLockPath(%q) error = %v, want ErrInvalidPath", key, err)
			}
		})
	}
}

func TestWriteTextAtomicLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "spool", "out.msg")
	in := "to=42\nhello\n"
	if err := WriteTextAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteTextAtomic() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != in {
		t.Fatalf("content = %q, want %q", got, in)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteTextAtomicEncoding(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.msg")
	if err := WriteTextAtomic(path, "Привет", FileOptions{Encoding: charmap.Windows1251}); err != nil {
		t.Fatalf("WriteTextAtomic() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("encoded length = %d, want 6 single-byte runes", len(got))
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(got)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if string(decoded) != "Привет" {
		t.Fatalf("decoded = %q, want %q", decoded, "Привет")
	}
}

func TestWriteTextAtomicUnencodable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.msg")
	err := WriteTextAtomic(path, "emoji \U0001F600", FileOptions{Encoding: charmap.Windows1251})
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("WriteTextAtomic() error = %v, want ErrEncodeFailed", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("target should not exist, stat err = %v", statErr)
	}
}

func TestWriteFileAtomicEmptyPath(t *testing.T) {
	t.Parallel()

	if err := WriteFileAtomic("  ", []byte("x"), FileOptions{}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("WriteFileAtomic() error = %v, want ErrInvalidPath", err)
	}
}
