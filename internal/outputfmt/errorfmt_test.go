package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeErrorTextWeatherURL(t *testing.T) {
	t.Parallel()

	in := `Get "https://api.openweathermap.org/data/2.5/onecall?appid=s3cr3t&lat=55.75&lon=37.61": context deadline exceeded`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "api.openweathermap.org") {
		t.Fatalf("host should be removed, got %q", out)
	}
	if strings.Contains(out, "s3cr3t") {
		t.Fatalf("appid should be redacted, got %q", out)
	}
	if !strings.Contains(out, `Get "/data/2.5/onecall?`) || !strings.Contains(out, "lat=55.75") {
		t.Fatalf("path and query should be kept, got %q", out)
	}
	if !strings.Contains(out, "appid=%5Bredacted%5D") {
		t.Fatalf("expected redacted appid, got %q", out)
	}
}

func TestSanitizeErrorTextBotToken(t *testing.T) {
	t.Parallel()

	in := `Post "https://api.telegram.org/bot123456:AAE-x_yz/sendMessage": dial tcp: i/o timeout`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "AAE-x_yz") || strings.Contains(out, "api.telegram.org") {
		t.Fatalf("token and host should be removed, got %q", out)
	}
	if !strings.Contains(out, "/bot[redacted]/sendMessage") {
		t.Fatalf("expected redacted bot path, got %q", out)
	}
}

func TestSanitizeErrorTextPlain(t *testing.T) {
	t.Parallel()

	if got := SanitizeErrorText("  exit status 1 "); got != "exit status 1" {
		t.Fatalf("SanitizeErrorText() = %q", got)
	}
	if got := FormatErrorForDisplay(nil); got != "" {
		t.Fatalf("FormatErrorForDisplay(nil) = %q", got)
	}
	if got := FormatErrorForDisplay(errors.New("see https://example.com/x?token=t1")); got != "see /x?token=%5Bredacted%5D" {
		t.Fatalf("FormatErrorForDisplay() = %q", got)
	}
}
