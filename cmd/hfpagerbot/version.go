package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = ""
)

// buildRevision falls back to the VCS stamp the go tool embeds.
func buildRevision() (rev string, modified bool) {
	if c := strings.TrimSpace(commit); c != "" {
		return c, false
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	return rev, modified
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "hfpagerbot %s (%s %s/%s)\n", strings.TrimSpace(version), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if rev, dirty := buildRevision(); rev != "" {
				if dirty {
					rev += "+dirty"
				}
				_, _ = fmt.Fprintf(out, "commit: %s\n", rev)
			}
			return nil
		},
	}
}
