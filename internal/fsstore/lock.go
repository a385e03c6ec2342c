package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	lockKeyMaxLen = 120
	lockRetryWait = 25 * time.Millisecond
)

// BuildLockPath returns <lockRoot>/<lockKey>.lck. Keys are lowercase
// [a-z0-9._-] and may not start or end with a dot.
func BuildLockPath(lockRoot, lockKey string) (string, error) {
	lockRoot, err := cleanPath(lockRoot)
	if err != nil {
		return "", err
	}
	if err := validateLockKey(lockKey); err != nil {
		return "", err
	}
	return filepath.Join(lockRoot, lockKey+".lck"), nil
}

func validateLockKey(key string) error {
	switch {
	case key == "" || strings.TrimSpace(key) != key:
		return fmt.Errorf("%w: lock key %q", ErrInvalidPath, key)
	case len(key) > lockKeyMaxLen:
		return fmt.Errorf("%w: lock key too long", ErrInvalidPath)
	case key[0] == '.' || key[len(key)-1] == '.':
		return fmt.Errorf("%w: lock key cannot start or end with dot", ErrInvalidPath)
	}
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return fmt.Errorf("%w: invalid lock key character %q", ErrInvalidPath, r)
	}
	return nil
}

// WithLock runs fn while holding an exclusive lock on lockPath. Acquisition
// gives up after wait or when ctx ends; wait <= 0 waits as long as ctx allows.
// The lock is held for the whole of fn, which for serve is the process lifetime.
func WithLock(ctx context.Context, lockPath string, wait time.Duration, fn func() error) error {
	lockPath, err := cleanPath(lockPath)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := EnsureDir(filepath.Dir(lockPath), defaultDirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrLockUnavailable, lockPath, err)
	}
	defer f.Close()

	acquireCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	for {
		ok, err := tryLock(f)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLockUnavailable, lockPath, err)
		}
		if ok {
			break
		}
		select {
		case <-acquireCtx.Done():
			return fmt.Errorf("%w: %s (%s): %v", ErrLockTimeout, lockPath, describeOwner(lockPath), acquireCtx.Err())
		case <-time.After(lockRetryWait):
		}
	}
	defer func() { _ = unlock(f) }()

	writeLockOwner(f)
	return fn()
}

// writeLockOwner records who holds the lock, for operators chasing a stuck gateway.
func writeLockOwner(f *os.File) {
	host, _ := os.Hostname()
	line := fmt.Sprintf("pid=%d host=%s acquired_at=%s\n", os.Getpid(), host, time.Now().UTC().Format(time.RFC3339))
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(line), 0)
	_ = f.Sync()
}

// LockOwner returns the owner line of a lock file, or "" when there is none.
func LockOwner(lockPath string) string {
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func describeOwner(lockPath string) string {
	if owner := LockOwner(lockPath); owner != "" {
		return "held by " + owner
	}
	return "owner unknown"
}
