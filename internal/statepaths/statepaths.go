package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/R6DJO/HFpager-bot/internal/fsstore"
)

const (
	DefaultFileStateDir = "~/.hfpager"
	lockDirName         = ".fslocks"
	gatewayLockKey      = "gateway"
)

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

// FileStateDir resolves the configured state directory.
func FileStateDir(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultFileStateDir
	}
	return filepath.Clean(ExpandHome(raw))
}

// GatewayLockPath is the lock a running gateway holds for its lifetime.
func GatewayLockPath(stateDir string) (string, error) {
	return fsstore.BuildLockPath(filepath.Join(FileStateDir(stateDir), lockDirName), gatewayLockKey)
}
