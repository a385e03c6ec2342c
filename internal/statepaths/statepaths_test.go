package statepaths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := ExpandHome("~/.hfpager"); got != filepath.Join(home, ".hfpager") {
		t.Fatalf("ExpandHome() = %q", got)
	}
	if got := ExpandHome("/var/lib/hfpager"); got != "/var/lib/hfpager" {
		t.Fatalf("ExpandHome(abs) = %q", got)
	}
	if got := ExpandHome("~other/x"); got != "~other/x" {
		t.Fatalf("ExpandHome(~other) = %q", got)
	}
}

func TestGatewayLockPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, err := GatewayLockPath(dir)
	if err != nil {
		t.Fatalf("GatewayLockPath() error = %v", err)
	}
	want := filepath.Join(dir, ".fslocks", "gateway.lck")
	if got != want {
		t.Fatalf("GatewayLockPath() = %q, want %q", got, want)
	}
}
