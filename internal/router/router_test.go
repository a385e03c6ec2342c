package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/telegram"
	"github.com/R6DJO/HFpager-bot/internal/transmit"
)

type sentMessage struct {
	ChatID int64
	ID     int64
	Text   string
	Opts   telegram.SendOptions
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type fakeChat struct {
	mu     sync.Mutex
	nextID int64
	sends  []sentMessage
	edits  []editedMessage
}

func (c *fakeChat) Send(_ context.Context, chatID int64, text string, opts telegram.SendOptions) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sends = append(c.sends, sentMessage{ChatID: chatID, ID: c.nextID, Text: text, Opts: opts})
	return c.nextID, nil
}

func (c *fakeChat) Edit(_ context.Context, chatID, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

type fakeSink struct {
	mu   sync.Mutex
	reqs []transmit.Request
	err  error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Transmit(_ context.Context, req transmit.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reqs = append(s.reqs, req)
	return nil
}

type fakeForecaster struct {
	calls    int
	forecast string
	err      error
}

func (f *fakeForecaster) Forecast(_ context.Context, lat, lon float64) (string, error) {
	f.calls++
	return f.forecast, f.err
}

type scheduled struct {
	name  string
	delay time.Duration
}

const (
	ownID  = "12345"
	mainID = int64(100)
)

func newTestRouter(t *testing.T, mutate func(*Options)) (*Router, *fakeChat, *fakeSink, *MemoryStore) {
	t.Helper()
	chat := &fakeChat{nextID: 500}
	sink := &fakeSink{}
	store := NewMemoryStore()
	opts := Options{
		OwnID:              ownID,
		DefaultDestination: "42",
		Speed:              32,
		ChatID:             mainID,
		Chat:               chat,
		Sink:               sink,
		Store:              store,
		Schedule: func(ctx context.Context, name string, delay time.Duration, fn func(ctx context.Context) error) {
			_ = fn(ctx)
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, chat, sink, store
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{OwnID: ownID, Sink: &fakeSink{}}); err == nil {
		t.Fatalf("New() without chat expected error")
	}
	if _, err := New(Options{OwnID: ownID, Chat: &fakeChat{}}); err == nil {
		t.Fatalf("New() without sink expected error")
	}
	if _, err := New(Options{Chat: &fakeChat{}, Sink: &fakeSink{}}); err == nil {
		t.Fatalf("New() without own id expected error")
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"hello", "hello"},
		{"  !hello  ", "hello"},
		{"12345 (000) > 42, 4 Bd\r\n!hello", "hello"},
		{"12345 (000) > 42, 4 Bd\nline1\nline2", "line1\nline2"},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRelayThenAckEditsEchoOnce(t *testing.T) {
	t.Parallel()

	r, chat, sink, store := newTestRouter(t, nil)
	ctx := context.Background()

	if err := r.Relay(ctx, OutboundRequest{ChatID: mainID, MessageID: 7, To: "42", Text: "hello"}); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if len(sink.reqs) != 1 || sink.reqs[0].To != "42" || sink.reqs[0].Text != "hello" || !sink.reqs[0].AskAck {
		t.Fatalf("transmits = %+v", sink.reqs)
	}
	if len(chat.sends) != 1 || chat.sends[0].Opts.ReplyToMessageID != 7 {
		t.Fatalf("echo sends = %+v", chat.sends)
	}
	echoID := chat.sends[0].ID
	if _, ok := store.PendingEcho("hello"); !ok {
		t.Fatalf("pending echo for %q missing after relay", "hello")
	}
	if text, ok := store.Mailbox("42"); !ok || text != "hello" {
		t.Fatalf("Mailbox(42) = %q, %v", text, ok)
	}

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/150203-S1-0P", Text: "hello"})

	if len(chat.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(chat.edits))
	}
	if got := chat.edits[0]; got.MessageID != echoID || got.ChatID != mainID || got.Text != "✓ hello" {
		t.Fatalf("edit = %+v, want message %d text %q", got, echoID, "✓ hello")
	}
	if len(chat.sends) != 1 {
		t.Fatalf("sends after ack = %d, want 1", len(chat.sends))
	}
	if _, ok := store.PendingEcho("hello"); ok {
		t.Fatalf("pending echo still present after ack")
	}
	ref, ok := store.ChatMessage("2024-03-01 150203")
	if !ok || ref.MessageID != echoID {
		t.Fatalf("ChatMessage() = %+v, %v", ref, ok)
	}
}

func TestSentUnconfirmedThenAckedKeepsOneEntry(t *testing.T) {
	t.Parallel()

	r, chat, _, _ := newTestRouter(t, nil)
	ctx := context.Background()

	if err := r.Relay(ctx, OutboundRequest{ChatID: mainID, MessageID: 1, Text: "!status"}); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/101010-S1-00", Text: "12345 (000) > 42, 4 Bd\n!status"})
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/101010-S2-1N", Text: "12345 (000) > 42, 4 Bd\n!status"})

	if len(chat.sends) != 1 {
		t.Fatalf("sends = %d, want only the echo", len(chat.sends))
	}
	if len(chat.edits) != 2 {
		t.Fatalf("edits = %d, want 2", len(chat.edits))
	}
	if chat.edits[0].Text != "status" || chat.edits[1].Text != "✗ status" {
		t.Fatalf("edit texts = %q, %q", chat.edits[0].Text, chat.edits[1].Text)
	}
	if chat.edits[0].MessageID != chat.edits[1].MessageID {
		t.Fatalf("edits touched different messages: %+v", chat.edits)
	}
}

func TestSentWithoutEchoPostsNewMessage(t *testing.T) {
	t.Parallel()

	r, chat, _, store := newTestRouter(t, nil)
	r.HandleArtifact(context.Background(), radio.Artifact{Path: "2024-03-01.MSG/120000-S1-0P", Text: "from the pager keyboard"})

	if len(chat.sends) != 1 || chat.sends[0].Text != "✓ from the pager keyboard" || !chat.sends[0].Opts.Silent {
		t.Fatalf("sends = %+v", chat.sends)
	}
	if _, ok := store.ChatMessage("2024-03-01 120000"); !ok {
		t.Fatalf("chat message record missing")
	}
}

func TestReceivedNotifications(t *testing.T) {
	t.Parallel()

	const beaconChat = int64(200)
	r, chat, _, _ := newTestRouter(t, func(o *Options) { o.BeaconChatID = beaconChat })
	ctx := context.Background()

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/090000-RO-0A_12345.TXT", Text: "7 (001) > 12345, 4 Bd\nhi"})
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/090100-R-0_777.TXT", Text: "7 (001) > 777, 4 Bd\nhi there"})
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/090200-B.TXT", Text: "beacon R6DJO"})
	r.HandleArtifact(ctx, radio.Artifact{Path: "notes.txt", Text: "ignored"})

	if len(chat.sends) != 3 {
		t.Fatalf("sends = %d, want 3: %+v", len(chat.sends), chat.sends)
	}
	if chat.sends[0].Opts.Silent || !strings.HasPrefix(chat.sends[0].Text, "Private message received") {
		t.Fatalf("private notification = %+v", chat.sends[0])
	}
	if !chat.sends[1].Opts.Silent || chat.sends[1].ChatID != mainID {
		t.Fatalf("intercept notification = %+v", chat.sends[1])
	}
	if !chat.sends[2].Opts.Silent || chat.sends[2].ChatID != beaconChat {
		t.Fatalf("beacon notification = %+v", chat.sends[2])
	}
}

func TestReceivedAckArtifactEditsWithoutRepeatingCommands(t *testing.T) {
	t.Parallel()

	wx := &fakeForecaster{forecast: "sunny"}
	r, chat, sink, _ := newTestRouter(t, func(o *Options) { o.Weather = wx })
	ctx := context.Background()
	text := "42 (007) > 12345, 4 Bd\n=x55.75,37.61"

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/150203-RO-0A_12345.TXT", Text: text})
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/150203-RO-2_12345.TXT", Text: text})

	if wx.calls != 1 {
		t.Fatalf("forecast calls = %d, want 1", wx.calls)
	}
	if len(sink.reqs) != 1 {
		t.Fatalf("transmits = %d, want 1", len(sink.reqs))
	}
	if len(chat.edits) != 1 || !strings.HasPrefix(chat.edits[0].Text, "Private message received and acknowledgment sent") {
		t.Fatalf("edits = %+v", chat.edits)
	}
}

func TestWeatherAddressedToGateway(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("03/01 Темп:-5…1°C Вет:С 3…7м/с снег Обл:90% Вер.ос:80%\n", 8)
	wx := &fakeForecaster{forecast: long}
	r, chat, sink, _ := newTestRouter(t, func(o *Options) { o.Weather = wx })

	r.HandleArtifact(context.Background(), radio.Artifact{
		Path: "2024-03-01.MSG/150203-RO-0A_12345.TXT",
		Text: "42 (007) > 12345, 23 Bd\n=x55.75,37.61",
	})

	if wx.calls != 1 {
		t.Fatalf("forecast calls = %d, want 1", wx.calls)
	}
	if len(sink.reqs) < 2 {
		t.Fatalf("transmits = %d, want the forecast split into chunks", len(sink.reqs))
	}
	for _, req := range sink.reqs {
		if n := utf8.RuneCountInString(req.Text); n > transmit.MaxChunkChars {
			t.Fatalf("chunk length = %d, want <= %d", n, transmit.MaxChunkChars)
		}
		if req.To != "42" || req.Speed != 16 {
			t.Fatalf("reply addressed to %q at %d, want 42 at 16", req.To, req.Speed)
		}
	}
	var sawLink bool
	for _, m := range chat.sends {
		if m.Text == MapLink(55.75, 37.61) {
			sawLink = true
		}
	}
	if !sawLink {
		t.Fatalf("map link not posted: %+v", chat.sends)
	}
}

func TestWeatherAddressedElsewhere(t *testing.T) {
	t.Parallel()

	wx := &fakeForecaster{forecast: "sunny"}
	r, _, sink, _ := newTestRouter(t, func(o *Options) { o.Weather = wx })

	r.HandleArtifact(context.Background(), radio.Artifact{
		Path: "2024-03-01.MSG/150203-R-0_777.TXT",
		Text: "42 (007) > 777, 4 Bd\n=x55.75,37.61",
	})

	if wx.calls != 0 {
		t.Fatalf("forecast calls = %d, want 0", wx.calls)
	}
	if len(sink.reqs) != 0 {
		t.Fatalf("transmits = %d, want 0", len(sink.reqs))
	}
}

func TestWeatherFailureTransmitsShortError(t *testing.T) {
	t.Parallel()

	wx := &fakeForecaster{err: errors.New("upstream down")}
	r, _, sink, _ := newTestRouter(t, func(o *Options) { o.Weather = wx })

	r.HandleArtifact(context.Background(), radio.Artifact{
		Path: "2024-03-01.MSG/150203-RO-0A_12345.TXT",
		Text: "42 (007) > 12345, 4 Bd\n=X55.75,37.61",
	})

	if len(sink.reqs) != 1 || sink.reqs[0].Text != "Error in weather" {
		t.Fatalf("transmits = %+v", sink.reqs)
	}
}

func TestMailboxRequest(t *testing.T) {
	t.Parallel()

	r, _, sink, store := newTestRouter(t, nil)
	ctx := context.Background()

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/080000-RO-0A_12345.TXT", Text: "42 (007) > 12345, 4 Bd\n=g"})
	store.PutMailbox("42", "meet at noon")
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/080100-RO-0A_12345.TXT", Text: "42 (007) > 12345, 4 Bd\n=T"})

	if len(sink.reqs) != 2 {
		t.Fatalf("transmits = %d, want 2", len(sink.reqs))
	}
	if sink.reqs[0].Text != NoMessagesText || sink.reqs[1].Text != "meet at noon" {
		t.Fatalf("mailbox replies = %q, %q", sink.reqs[0].Text, sink.reqs[1].Text)
	}
}

func TestPingIsScheduledWithJitter(t *testing.T) {
	t.Parallel()

	var got []scheduled
	r, _, sink, _ := newTestRouter(t, func(o *Options) {
		o.PingMinDelay = 2 * time.Second
		o.PingMaxDelay = 4 * time.Second
		o.Schedule = func(ctx context.Context, name string, delay time.Duration, fn func(ctx context.Context) error) {
			got = append(got, scheduled{name: name, delay: delay})
			_ = fn(ctx)
		}
	})

	r.HandleArtifact(context.Background(), radio.Artifact{
		Path: "2024-03-01.MSG/080000-RO-0A_12345.TXT",
		Text: "42 (007) > 12345, 23 Bd,ER=3%\n/ping",
	})

	if len(got) != 1 || got[0].delay < 2*time.Second || got[0].delay > 4*time.Second {
		t.Fatalf("scheduled = %+v", got)
	}
	if len(sink.reqs) != 1 || sink.reqs[0].Text != "pong ER=3" || sink.reqs[0].To != "42" {
		t.Fatalf("transmits = %+v", sink.reqs)
	}
}

func TestRelayRejectsBadInput(t *testing.T) {
	t.Parallel()

	r, chat, sink, _ := newTestRouter(t, func(o *Options) { o.DefaultDestination = "" })
	ctx := context.Background()

	if err := r.Relay(ctx, OutboundRequest{ChatID: mainID, Text: "no destination"}); !errors.Is(err, transmit.ErrInvalidDest) {
		t.Fatalf("Relay() error = %v, want ErrInvalidDest", err)
	}
	if err := r.Relay(ctx, OutboundRequest{ChatID: mainID, To: "42", Text: "   "}); !errors.Is(err, transmit.ErrEmptyText) {
		t.Fatalf("Relay() error = %v, want ErrEmptyText", err)
	}
	if err := r.Relay(ctx, OutboundRequest{ChatID: mainID, To: "42", Text: strings.Repeat("a", 300)}); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("Relay() error = %v, want ErrTextTooLong", err)
	}
	if len(sink.reqs) != 0 || len(chat.sends) != 0 {
		t.Fatalf("rejected relays had side effects: %d transmits, %d sends", len(sink.reqs), len(chat.sends))
	}
}

func TestRelayTransmitFailureLeavesNoPendingEcho(t *testing.T) {
	t.Parallel()

	r, chat, sink, store := newTestRouter(t, nil)
	sink.err = errors.New("am exited 1")

	if err := r.Relay(context.Background(), OutboundRequest{ChatID: mainID, To: "42", Text: "hello"}); err == nil {
		t.Fatalf("Relay() expected error")
	}
	if _, ok := store.PendingEcho("hello"); ok {
		t.Fatalf("pending echo registered for failed transmit")
	}
	if len(chat.sends) != 0 {
		t.Fatalf("sends = %d, want 0", len(chat.sends))
	}
}

func TestRelayAppendsSuffix(t *testing.T) {
	t.Parallel()

	r, _, sink, store := newTestRouter(t, func(o *Options) { o.Suffix = "de R6DJO" })
	if err := r.Relay(context.Background(), OutboundRequest{ChatID: mainID, To: "42", Speed: 4, Resend: true, Text: "qrv"}); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if sink.reqs[0].Text != "qrv de R6DJO" || sink.reqs[0].Speed != 4 || !sink.reqs[0].Resend {
		t.Fatalf("transmit = %+v", sink.reqs[0])
	}
	if _, ok := store.PendingEcho("qrv de R6DJO"); !ok {
		t.Fatalf("pending echo missing for suffixed text")
	}
}

func TestReceivedAndSentInSameSecondStayApart(t *testing.T) {
	t.Parallel()

	r, chat, _, store := newTestRouter(t, nil)
	ctx := context.Background()

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/150203-S1-0P", Text: "outbound"})
	r.HandleArtifact(ctx, radio.Artifact{
		Path: "2024-03-01.MSG/150203-R-0_777.TXT",
		Text: "42 (007) > 777, 4 Bd\n=x55.75,37.61",
	})

	if len(chat.edits) != 0 {
		t.Fatalf("edits = %+v, want none", chat.edits)
	}
	if len(chat.sends) != 3 {
		t.Fatalf("sends = %d, want echo, notification and map link: %+v", len(chat.sends), chat.sends)
	}
	if chat.sends[2].Text != MapLink(55.75, 37.61) {
		t.Fatalf("map link = %q", chat.sends[2].Text)
	}
	if ref, ok := store.ChatMessage("2024-03-01 150203"); !ok || ref.MessageID != chat.sends[0].ID {
		t.Fatalf("sent record = %+v, %v, want message %d", ref, ok, chat.sends[0].ID)
	}
}

func TestCommandRepliesLeaveMailboxAlone(t *testing.T) {
	t.Parallel()

	wx := &fakeForecaster{forecast: "sunny"}
	r, _, sink, store := newTestRouter(t, func(o *Options) { o.Weather = wx })
	ctx := context.Background()

	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/080000-RO-0A_12345.TXT", Text: "42 (007) > 12345, 4 Bd\n=x55.75,37.61"})
	r.HandleArtifact(ctx, radio.Artifact{Path: "2024-03-01.MSG/080100-RO-0A_12345.TXT", Text: "42 (007) > 12345, 4 Bd\n/ping"})

	if len(sink.reqs) != 2 {
		t.Fatalf("transmits = %d, want weather and pong", len(sink.reqs))
	}
	if text, ok := store.Mailbox("42"); ok {
		t.Fatalf("Mailbox(42) = %q, want unset after command replies", text)
	}
}
