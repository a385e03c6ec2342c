// Package outputfmt strips credentials from error text before it is logged
// or echoed into the chat.
package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	// Telegram puts the bot token in the path: /bot<id>:<secret>/method.
	botTokenRE = regexp.MustCompile(`/bot\d+:[A-Za-z0-9_-]+`)
)

const redacted = "[redacted]"

// FormatErrorForDisplay returns err's text with URL hosts dropped and
// credentials masked. A nil error is the empty string.
func FormatErrorForDisplay(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeErrorText(err.Error())
}

// SanitizeErrorText rewrites every absolute URL in raw to its path and query,
// masking bot tokens and sensitive query values.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return urlInTextRE.ReplaceAllStringFunc(raw, sanitizeURL)
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return botTokenRE.ReplaceAllString(raw, "/bot"+redacted)
	}
	out := botTokenRE.ReplaceAllString(u.EscapedPath(), "/bot"+redacted)
	if out == "" {
		out = "/"
	}
	if q := u.Query(); len(q) > 0 {
		for k := range q {
			if isSensitiveQueryKey(k) {
				q.Set(k, redacted)
			}
		}
		out += "?" + q.Encode()
	}
	return out
}

func isSensitiveQueryKey(key string) bool {
	n := strings.ToLower(strings.TrimSpace(key))
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	switch n {
	case "":
		return false
	case "key", "appid":
		return true
	}
	for _, part := range []string{"apikey", "token", "secret", "password", "authorization"} {
		if strings.Contains(n, part) {
			return true
		}
	}
	return false
}
