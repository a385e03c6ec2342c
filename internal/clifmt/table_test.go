package clifmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintTablePlain(t *testing.T) {
	SetColor(false)

	var buf bytes.Buffer
	PrintTable(&buf, TableOptions{
		Title:        "Artifacts",
		DetailHeader: "KIND",
		DefaultWidth: 40,
		Rows: []Row{
			{Key: "150203-S1-0P", Detail: "sent_acked key=150203"},
			{Key: "notes.txt", Detail: "unrecognized", Failed: true},
		},
	})
	out := buf.String()
	for _, want := range []string{"Artifacts (2)", "PATH", "KIND", "150203-S1-0P  sent_acked", "notes.txt     unrecognized"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("output has ANSI codes with color disabled:\n%q", out)
	}
}

func TestPrintTableEmpty(t *testing.T) {
	SetColor(false)

	var buf bytes.Buffer
	PrintTable(&buf, TableOptions{EmptyText: "No files."})
	if strings.TrimSpace(buf.String()) != "No files." {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	lines := wrap("Темп:-5…1°C Вет:С 3…7м/с снег", 12)
	for _, line := range lines {
		if n := len([]rune(line)); n > 12 {
			t.Fatalf("line %q has %d runes", line, n)
		}
	}
	if strings.Join(lines, " ") != "Темп:-5…1°C Вет:С 3…7м/с снег" {
		t.Fatalf("wrap() lost text: %q", lines)
	}
}
