package radio

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type CommandKind int

const (
	CommandMapLink CommandKind = iota + 1
	CommandWeather
	CommandMailbox
	CommandPing
)

func (k CommandKind) String() string {
	switch k {
	case CommandMapLink:
		return "map_link"
	case CommandWeather:
		return "weather"
	case CommandMailbox:
		return "mailbox"
	case CommandPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Header is the first line HFpager prepends to every received message body.
type Header struct {
	From      string
	To        string
	Code      string
	SpeedRaw  string
	Speed     int
	ErrorRate string // empty when the header has no ER field
}

// Command is one request recognized in a message body.
type Command struct {
	Kind CommandKind
	Lat  float64
	Lon  float64
	// Addressed is true when the message header names the gateway as recipient.
	// Map links fire regardless; the other kinds are only acted on when addressed.
	Addressed bool
	From      string
	ErrorRate string
}

type Payload struct {
	Header   *Header
	Body     string
	Commands []Command
}

// Offset is a calibration correction added to every parsed coordinate.
type Offset struct {
	Lat float64
	Lon float64
}

type ParseOptions struct {
	OwnID  string
	Offset Offset
}

const coordExpr = `(-?\d{1,2}\.\d{1,8}),\s?(-?\d{1,3}\.\d{1,8})`

var (
	headerPattern  = regexp.MustCompile(`^(\d{1,5}) \((\d{3})\) > (\d{1,5}), ?([0-9]+(?:\.[0-9]+)?) ?Bd(?:, ?ER=([0-9]+(?:\.[0-9]+)?)%?)?`)
	coordPattern   = regexp.MustCompile(`(?:^|[^0-9.])` + coordExpr + `(?:[^0-9]|$)`)
	weatherPattern = regexp.MustCompile(`^=[xX]` + coordExpr)
	mailboxPattern = regexp.MustCompile(`^=[gGtT]`)
	pingPattern    = regexp.MustCompile(`^/ping(?:\s|$)`)
)

// ParseHeader parses the HFpager header at the start of text.
func ParseHeader(text string) (*Header, bool) {
	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &Header{
		From:      m[1],
		Code:      m[2],
		To:        m[3],
		SpeedRaw:  m[4],
		Speed:     SpeedFromCode(m[4]),
		ErrorRate: m[5],
	}, true
}

// MessageBody returns text without the HFpager header line, if there is one.
func MessageBody(text string) string {
	if _, ok := ParseHeader(text); !ok {
		return text
	}
	_, rest, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}
	return rest
}

// ParseCoordinates finds the first lat,lon pair in text.
func ParseCoordinates(text string, offset Offset) (lat, lon float64, ok bool) {
	m := coordPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	return coordsFromMatch(m[1], m[2], offset)
}

func parseWeather(body string, offset Offset) (lat, lon float64, ok bool) {
	m := weatherPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, 0, false
	}
	return coordsFromMatch(m[1], m[2], offset)
}

func coordsFromMatch(rawLat, rawLon string, offset Offset) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return 0, 0, false
	}
	return round4(lat + offset.Lat), round4(lon + offset.Lon), true
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// ParsePayload extracts every recognized command from a received message.
// The shapes are checked independently, so one payload can yield several commands.
func ParsePayload(text string, opts ParseOptions) Payload {
	out := Payload{Body: MessageBody(text)}
	header, _ := ParseHeader(text)
	out.Header = header

	from, errRate := "", ""
	addressed := false
	if header != nil {
		from = header.From
		errRate = header.ErrorRate
		ownID := strings.TrimSpace(opts.OwnID)
		addressed = ownID != "" && header.To == ownID
	}
	body := strings.TrimSpace(out.Body)

	if lat, lon, ok := ParseCoordinates(body, opts.Offset); ok {
		out.Commands = append(out.Commands, Command{Kind: CommandMapLink, Lat: lat, Lon: lon, Addressed: addressed, From: from})
	}
	if lat, lon, ok := parseWeather(body, opts.Offset); ok {
		out.Commands = append(out.Commands, Command{Kind: CommandWeather, Lat: lat, Lon: lon, Addressed: addressed, From: from})
	}
	if mailboxPattern.MatchString(body) {
		out.Commands = append(out.Commands, Command{Kind: CommandMailbox, Addressed: addressed, From: from})
	}
	if pingPattern.MatchString(body) {
		out.Commands = append(out.Commands, Command{Kind: CommandPing, Addressed: addressed, From: from, ErrorRate: errRate})
	}
	return out
}

// Find returns the first command of kind k.
func (p Payload) Find(k CommandKind) (Command, bool) {
	for _, c := range p.Commands {
		if c.Kind == k {
			return c, true
		}
	}
	return Command{}, false
}
