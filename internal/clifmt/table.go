package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultTableWidth     = 100
	defaultMinDetailWidth = 36
)

// Row is one line of a two-column table. Failed rows print their key in the
// warning colour instead of the success colour.
type Row struct {
	Key    string
	Detail string
	Failed bool
}

type TableOptions struct {
	Title     string
	Rows      []Row
	EmptyText string
	// KeyHeader defaults to PATH, DetailHeader to DETAILS.
	KeyHeader    string
	DetailHeader string
	// DefaultWidth is used when out is not a terminal.
	DefaultWidth   int
	MinDetailWidth int
	// EmptyDetail stands in for blank details; defaults to "-".
	EmptyDetail string
}

// PrintTable writes rows with the detail column wrapped to the terminal width.
func PrintTable(out io.Writer, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}
	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 {
		fmt.Fprintln(out, Warn(orDefault(opts.EmptyText, "Nothing to show.")))
		return
	}

	keyHeader := orDefault(opts.KeyHeader, "PATH")
	keyWidth := utf8.RuneCountInString(keyHeader)
	for _, row := range opts.Rows {
		keyWidth = max(keyWidth, utf8.RuneCountInString(row.Key))
	}
	width := terminalWidth(out, opts.DefaultWidth)
	detailWidth := max(width-keyWidth-2, orDefaultInt(opts.MinDetailWidth, defaultMinDetailWidth))
	indent := strings.Repeat(" ", keyWidth)

	fmt.Fprintf(out, "%s  %s\n", Key(pad(keyHeader, keyWidth)), Key(orDefault(opts.DetailHeader, "DETAILS")))
	fmt.Fprintf(out, "%s  %s\n", Dim(strings.Repeat("-", keyWidth)), Dim(strings.Repeat("-", detailWidth)))
	for _, row := range opts.Rows {
		style := Success
		if row.Failed {
			style = Warn
		}
		lines := wrap(orDefault(row.Detail, orDefault(opts.EmptyDetail, "-")), detailWidth)
		fmt.Fprintf(out, "%s  %s\n", style(pad(row.Key, keyWidth)), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(out, "%s  %s\n", indent, line)
		}
	}
}

func terminalWidth(out io.Writer, fallback int) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return orDefaultInt(fallback, defaultTableWidth)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func orDefaultInt(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

func pad(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// wrap breaks text on spaces into lines of at most width runes. Words longer
// than width are cut.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var line []rune
	for _, w := range words {
		word := []rune(w)
		if len(line) > 0 && len(line)+1+len(word) <= width {
			line = append(append(line, ' '), word...)
			continue
		}
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		for width > 0 && len(word) > width {
			lines = append(lines, string(word[:width]))
			word = word[width:]
		}
		line = word
	}
	return append(lines, string(line))
}
