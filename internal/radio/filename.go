package radio

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the disposition of a message artifact derived from its file name.
type Kind int

const (
	Unrecognized Kind = iota
	PrivateReceived
	PrivateReceivedAcked
	Intercepted
	BeaconIntercepted
	SentAcked
	SentNacked
	SentUnconfirmed
)

func (k Kind) String() string {
	switch k {
	case PrivateReceived:
		return "private_received"
	case PrivateReceivedAcked:
		return "private_received_acked"
	case Intercepted:
		return "intercepted"
	case BeaconIntercepted:
		return "beacon_intercepted"
	case SentAcked:
		return "sent_acked"
	case SentNacked:
		return "sent_nacked"
	case SentUnconfirmed:
		return "sent_unconfirmed"
	default:
		return "unrecognized"
	}
}

// IsSent reports whether the kind describes one of our own transmissions.
func (k Kind) IsSent() bool {
	return k == SentAcked || k == SentNacked || k == SentUnconfirmed
}

// IsReceived reports whether the kind describes traffic heard on the air.
func (k Kind) IsReceived() bool {
	switch k {
	case PrivateReceived, PrivateReceivedAcked, Intercepted, BeaconIntercepted:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
	DirectionBeacon   Direction = "beacon"
	DirectionRelay    Direction = "relay"
)

// BroadcastID is the id HFpager writes when a message has no specific addressee.
const BroadcastID = "0"

// Descriptor is everything the file name says about one artifact.
type Descriptor struct {
	Kind      Kind
	Path      string
	Date      string // YYYY-MM-DD, from the enclosing .MSG directory
	Time      string // HHMMSS
	Direction Direction
	DirToken  string // raw direction token: R, RO, RE, S1..S9, B
	AckFlag   int    // -1 when the name carries no ack digit
	Status    string // P, N, 0 for sent artifacts
	Retry     int    // S<n> retry index, 0 for non-sent artifacts
	Seq       string
	Length    string
	Checksum1 string
	Checksum2 string
	SenderID  string
	// RecipientID is BroadcastID when the message was not addressed.
	RecipientID string
}

// CorrelationKey links a sent artifact to its later acknowledgment artifacts.
func (d Descriptor) CorrelationKey() string {
	return strings.TrimSpace(d.Date + " " + d.Time)
}

// IsBroadcast reports whether the recipient is the wildcard id.
func (d Descriptor) IsBroadcast() bool {
	return d.RecipientID == "" || d.RecipientID == BroadcastID
}

var (
	// HHMMSS-<DIR>[-<ack><status>], then a free-form [-seq][-len][-crc1][-crc2][_<from>][_<to>][.ext] tail
	fileNamePrefix = regexp.MustCompile(`^(\d{6})-(RO|RE|R|S[1-9]|B)(?:-(\d)([0-9A-Z]?))?`)
	msgDirPattern  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.MSG$`)
)

// ParseFileName splits relPath into its descriptor fields without deciding the kind.
// ok is false when the base name does not start with the HFpager time and direction prefix;
// everything after the prefix is read best-effort.
func ParseFileName(relPath string) (Descriptor, bool) {
	relPath = strings.ReplaceAll(strings.TrimSpace(relPath), `\`, "/")
	d := Descriptor{Path: relPath, AckFlag: -1}
	base := path.Base(relPath)
	m := fileNamePrefix.FindStringSubmatch(base)
	if m == nil {
		return d, false
	}
	if dm := msgDirPattern.FindStringSubmatch(path.Base(path.Dir(relPath))); dm != nil {
		d.Date = dm[1]
	}
	d.Time = m[1]
	d.DirToken = m[2]
	switch {
	case m[2] == "B":
		d.Direction = DirectionBeacon
	case m[2] == "RE":
		d.Direction = DirectionRelay
	case strings.HasPrefix(m[2], "S"):
		d.Direction = DirectionSent
		d.Retry, _ = strconv.Atoi(m[2][1:])
	default:
		d.Direction = DirectionReceived
	}
	if m[3] != "" {
		d.AckFlag, _ = strconv.Atoi(m[3])
	}
	d.Status = m[4]

	fields, ids := splitTail(base[len(m[0]):])
	for i, f := range fields {
		switch i {
		case 0:
			d.Seq = f
		case 1:
			d.Length = f
		case 2:
			d.Checksum1 = f
		case 3:
			d.Checksum2 = f
		}
	}
	// The last id is always the addressee; a leading one names the sender.
	switch n := len(ids); {
	case n >= 2:
		d.SenderID, d.RecipientID = ids[0], ids[n-1]
	case n == 1:
		d.RecipientID = ids[0]
	}
	if d.RecipientID == "" {
		d.RecipientID = BroadcastID
	}
	return d, true
}

// splitTail breaks the part of a name after its prefix into "-" fields and "_" ids,
// dropping a trailing extension. Empty pieces are skipped.
func splitTail(tail string) (fields, ids []string) {
	if i := strings.LastIndexByte(tail, '.'); i >= 0 && !strings.ContainsAny(tail[i:], "-_") {
		tail = tail[:i]
	}
	head, rest, _ := strings.Cut(tail, "_")
	for _, f := range strings.Split(head, "-") {
		if f != "" {
			fields = append(fields, f)
		}
	}
	if rest == "" {
		return fields, nil
	}
	for _, id := range strings.Split(rest, "_") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return fields, ids
}

type kindRule struct {
	kind  Kind
	match func(d Descriptor, ownID string) bool
}

// kindRules are tried in order; the first match wins.
var kindRules = []kindRule{
	{PrivateReceived, func(d Descriptor, ownID string) bool {
		return d.DirToken == "RO" && d.AckFlag == 0 && isOwn(d, ownID)
	}},
	{PrivateReceivedAcked, func(d Descriptor, ownID string) bool {
		return d.DirToken == "RO" && (d.AckFlag == 2 || d.AckFlag == 3) && isOwn(d, ownID)
	}},
	{Intercepted, func(d Descriptor, _ string) bool {
		return d.Direction == DirectionReceived || d.Direction == DirectionRelay
	}},
	{SentAcked, func(d Descriptor, _ string) bool {
		return d.Direction == DirectionSent && d.AckFlag >= 0 && d.Status == "P"
	}},
	{SentNacked, func(d Descriptor, _ string) bool {
		return d.Direction == DirectionSent && d.AckFlag >= 0 && d.Status == "N"
	}},
	{SentUnconfirmed, func(d Descriptor, _ string) bool {
		return d.Direction == DirectionSent && d.AckFlag >= 0 && d.Status == "0"
	}},
	{BeaconIntercepted, func(d Descriptor, _ string) bool {
		return d.Direction == DirectionBeacon
	}},
}

func isOwn(d Descriptor, ownID string) bool {
	ownID = strings.TrimSpace(ownID)
	return ownID != "" && d.RecipientID == ownID
}

// Classify derives the disposition of the artifact at relPath. ownID is the
// gateway's radio id; private kinds only match messages addressed to it.
func Classify(relPath, ownID string) Descriptor {
	d, ok := ParseFileName(relPath)
	if !ok {
		d.Kind = Unrecognized
		return d
	}
	for _, rule := range kindRules {
		if rule.match(d, ownID) {
			d.Kind = rule.kind
			return d
		}
	}
	d.Kind = Unrecognized
	return d
}
