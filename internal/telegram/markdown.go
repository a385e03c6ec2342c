package telegram

import "strings"

const ParseModeMarkdownV2 = "MarkdownV2"

// markdownV2Special lists the characters MarkdownV2 requires escaped outside
// code spans.
const markdownV2Special = "\\_*[]()~`>#+-=|{}.!"

func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var codeEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// CodeMarkdownV2 renders text as inline code; only ` and \ need escaping there.
func CodeMarkdownV2(text string) string {
	return "`" + codeEscaper.Replace(text) + "`"
}
