// Package transmit hands outbound radio messages to the HFpager application.
// Delivery is never confirmed here: the outcome shows up later as a new
// artifact in the pager's message directory.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxChunkChars is the longest text HFpager accepts in one message.
const MaxChunkChars = 250

var (
	ErrEmptyText   = errors.New("transmit: empty text")
	ErrInvalidDest = errors.New("transmit: invalid destination")
)

type Request struct {
	To     string
	Speed  int
	AskAck bool
	Resend bool
	Text   string
}

// Sink is an outbound channel into the paging application.
type Sink interface {
	Name() string
	Transmit(ctx context.Context, req Request) error
}

// NewRequest builds a request with acknowledgment always requested.
func NewRequest(to string, speed int, resend bool, text string) Request {
	return Request{
		To:     strings.TrimSpace(to),
		Speed:  speed,
		AskAck: true,
		Resend: resend,
		Text:   strings.TrimSpace(text),
	}
}

func (r Request) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	if r.To == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDest)
	}
	for _, c := range r.To {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidDest, r.To)
		}
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ChunkText splits text into pieces of at most max runes, preferring line
// breaks, then spaces, and only then cutting inside a word.
func ChunkText(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	current := ""
	flush := func() {
		if s := strings.TrimSpace(current); s != "" {
			out = append(out, s)
		}
		current = ""
	}
	appendPiece := func(piece, sep string) {
		switch {
		case current == "":
			current = piece
		case utf8.RuneCountInString(current)+utf8.RuneCountInString(sep)+utf8.RuneCountInString(piece) <= max:
			current += sep + piece
		default:
			flush()
			current = piece
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= max {
			appendPiece(line, "\n")
			continue
		}
		flush()
		for _, word := range strings.Fields(line) {
			for utf8.RuneCountInString(word) > max {
				flush()
				runes := []rune(word)
				out = append(out, string(runes[:max]))
				word = string(runes[max:])
			}
			appendPiece(word, " ")
		}
		flush()
	}
	flush()
	return out
}
