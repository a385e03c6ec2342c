package transmit

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/R6DJO/HFpager-bot/internal/fsstore"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/encoding"
)

const spoolFileExt = ".msg"

type SpoolSinkOptions struct {
	Dir      string
	Encoding encoding.Encoding
	// NewName returns the base name of the next spool file; defaults to a ULID,
	// which keeps files in submission order for the transmitter.
	NewName func() string
}

// SpoolSink queues messages as files for a transmitter that watches Dir.
// Each file is written under a temp name and renamed once complete; a crash
// between the two loses the message (at-most-once).
type SpoolSink struct {
	dir      string
	encoding encoding.Encoding
	newName  func() string
}

func NewSpoolSink(opts SpoolSinkOptions) (*SpoolSink, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	newName := opts.NewName
	if newName == nil {
		newName = func() string { return ulid.Make().String() }
	}
	return &SpoolSink{dir: filepath.Clean(dir), encoding: opts.Encoding, newName: newName}, nil
}

func (s *SpoolSink) Name() string { return "spool" }

// FormatSpoolFile renders req in the queued-file format.
func FormatSpoolFile(req Request) string {
	var b strings.Builder
	b.WriteString("to=" + req.To + "\n")
	b.WriteString("speed=" + strconv.Itoa(req.Speed) + "\n")
	b.WriteString("askreq=" + boolFlag(req.AskAck) + "\n")
	b.WriteString("resend=" + boolFlag(req.Resend) + "\n")
	b.WriteString(req.Text)
	b.WriteString("\n")
	return b.String()
}

func (s *SpoolSink) Transmit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	path := filepath.Join(s.dir, s.newName()+spoolFileExt)
	if err := fsstore.WriteTextAtomic(path, FormatSpoolFile(req), fsstore.FileOptions{Encoding: s.encoding}); err != nil {
		return fmt.Errorf("spool transmit to %s: %w", req.To, err)
	}
	return nil
}
