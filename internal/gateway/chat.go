package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/telegram"
)

type ChatCommandKind int

const (
	ChatIgnore ChatCommandKind = iota
	ChatHelp
	ChatRelay
)

var ErrUnknownSpeed = errors.New("unknown speed code")

// ChatCommand is one parsed operator message.
type ChatCommand struct {
	Kind ChatCommandKind
	// To is empty when the default destination applies.
	To        string
	SpeedCode string
	Speed     int
	Resend    bool
	Text      string
}

// ParseChatCommand reads "/start", "/help" and relay requests of the form
// [<ownid>]>[<id>][@<speed>][!] <text>. Anything else is ChatIgnore.
func ParseChatCommand(text, ownID string) (ChatCommand, error) {
	text = strings.TrimSpace(text)
	if isHelpCommand(text) {
		return ChatCommand{Kind: ChatHelp}, nil
	}

	prefix, rest, found := strings.Cut(text, ">")
	if !found {
		return ChatCommand{Kind: ChatIgnore}, nil
	}
	// A radio id before ">" addresses a specific gateway; other gateways stay quiet.
	if prefix != "" && prefix != strings.TrimSpace(ownID) {
		return ChatCommand{Kind: ChatIgnore}, nil
	}

	cmd := ChatCommand{Kind: ChatRelay}
	if n := leadingDigits(rest); n > 0 && n <= 5 {
		cmd.To, rest = rest[:n], rest[n:]
	}
	if strings.HasPrefix(rest, "@") {
		rest = rest[1:]
		n := 0
		for n < len(rest) && (rest[n] == '.' || (rest[n] >= '0' && rest[n] <= '9')) {
			n++
		}
		cmd.SpeedCode, rest = rest[:n], rest[n:]
		cmd.Speed = radio.SpeedFromCode(cmd.SpeedCode)
		if cmd.Speed == 0 {
			return ChatCommand{}, fmt.Errorf("%w: %q", ErrUnknownSpeed, cmd.SpeedCode)
		}
	}
	if strings.HasPrefix(rest, "!") {
		cmd.Resend = true
		rest = rest[1:]
	}
	cmd.Text = strings.TrimSpace(rest)
	if cmd.Text == "" {
		return ChatCommand{Kind: ChatIgnore}, nil
	}
	return cmd, nil
}

func isHelpCommand(text string) bool {
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	switch strings.ToLower(word) {
	case "/start", "/help":
		return true
	}
	return false
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

// HelpText is the MarkdownV2 usage message for /start and /help.
func HelpText(callsign, ownID, defaultDest string) string {
	esc := telegram.EscapeMarkdownV2
	code := telegram.CodeMarkdownV2
	var b strings.Builder
	b.WriteString(esc("HFpager gateway"))
	if callsign != "" {
		b.WriteString(" " + esc(callsign))
	}
	b.WriteString(esc(fmt.Sprintf(", radio ID %s.", ownID)) + "\n\n")
	lines := [][2]string{
		{">text", fmt.Sprintf("send text to ID %s", defaultDest)},
		{">123 text", "send text to ID 123"},
		{">123@3 text", "send at speed code 3"},
		{">123! text", "repeat until acknowledged"},
		{ownID + ">text", "address this gateway when several share the chat"},
	}
	for _, l := range lines {
		b.WriteString(code(l[0]) + " " + esc("- "+l[1]) + "\n")
	}
	b.WriteString("\n" + esc("Radio requests: =x<lat>,<lon> weather, =g mailbox, /ping."))
	return b.String()
}
