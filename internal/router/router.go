// Package router turns classified pager artifacts and operator requests into
// chat notifications, in-place edits and outbound radio replies.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/R6DJO/HFpager-bot/internal/events"
	"github.com/R6DJO/HFpager-bot/internal/metrics"
	"github.com/R6DJO/HFpager-bot/internal/outputfmt"
	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/retryutil"
	"github.com/R6DJO/HFpager-bot/internal/telegram"
	"github.com/R6DJO/HFpager-bot/internal/transmit"
	"github.com/R6DJO/HFpager-bot/internal/weather"
)

const (
	MarkAcked  = "✓ "
	MarkNacked = "✗ "

	NoMessagesText = "No messages"
)

var ErrTextTooLong = errors.New("router: text too long for one radio message")

// ChatClient is the part of the chat front-end the router needs.
type ChatClient interface {
	Send(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) (int64, error)
	Edit(ctx context.Context, chatID, messageID int64, text string) error
}

// ScheduleFunc runs fn after delay without blocking the caller.
type ScheduleFunc func(ctx context.Context, name string, delay time.Duration, fn func(ctx context.Context) error)

type Options struct {
	OwnID              string
	DefaultDestination string
	// Speed is used for replies when the request header carries no known speed.
	Speed  int
	Suffix string
	Offset radio.Offset

	ChatID       int64
	BeaconChatID int64

	Chat    ChatClient
	Sink    transmit.Sink
	Weather weather.Forecaster
	Store   Store
	Events  *events.Mirror

	PingMinDelay time.Duration
	PingMaxDelay time.Duration
	Schedule     ScheduleFunc

	Logger *slog.Logger
	Now    func() time.Time
}

type Router struct {
	opts Options
	log  *slog.Logger

	mu sync.Mutex
}

func New(opts Options) (*Router, error) {
	if opts.Chat == nil {
		return nil, fmt.Errorf("router: chat client is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("router: transmit sink is required")
	}
	if strings.TrimSpace(opts.OwnID) == "" {
		return nil, fmt.Errorf("router: own radio id is required")
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Schedule == nil {
		logger := opts.Logger
		opts.Schedule = func(ctx context.Context, name string, delay time.Duration, fn func(ctx context.Context) error) {
			retryutil.AsyncAfter(ctx, logger, name, delay, 0, fn)
		}
	}
	return &Router{opts: opts, log: opts.Logger}, nil
}

// NormalizeText reduces a message text to the form used as the Pending-Echo
// key: no HFpager header line, no leading "!" resend marker, no outer space.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	body := strings.TrimSpace(radio.MessageBody(text))
	body = strings.TrimPrefix(body, "!")
	return strings.TrimSpace(body)
}

// HandleArtifact classifies one discovered artifact and performs its chat and
// radio side effects. Per-artifact failures are logged, never returned.
func (r *Router) HandleArtifact(ctx context.Context, art radio.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := radio.Classify(art.Path, r.opts.OwnID)
	metrics.ArtifactsTotal.WithLabelValues(desc.Kind.String()).Inc()
	if desc.Kind == radio.Unrecognized {
		r.log.Debug("artifact_unrecognized", "path", art.Path)
		return
	}
	r.log.Info("artifact",
		"path", art.Path,
		"kind", desc.Kind.String(),
		"key", desc.CorrelationKey(),
	)

	switch {
	case desc.Kind.IsSent():
		r.handleSent(ctx, desc, art)
		r.mirror(events.SourceWatcher, desc, art, nil)
	case desc.Kind.IsReceived():
		payload := radio.ParsePayload(art.Text, radio.ParseOptions{OwnID: r.opts.OwnID, Offset: r.opts.Offset})
		r.handleReceived(ctx, desc, art, payload)
		r.mirror(events.SourceWatcher, desc, art, &payload)
	}
}

func sentMark(kind radio.Kind) string {
	switch kind {
	case radio.SentAcked:
		return MarkAcked
	case radio.SentNacked:
		return MarkNacked
	default:
		return ""
	}
}

// handleSent resolves the chat entry for one of our own transmissions:
// Pending-Echo first, then the Chat-Message Record, then a new message.
func (r *Router) handleSent(ctx context.Context, desc radio.Descriptor, art radio.Artifact) {
	body := NormalizeText(art.Text)
	text := sentMark(desc.Kind) + body
	key := desc.CorrelationKey()

	if ref, ok := r.opts.Store.TakePendingEcho(body); ok {
		r.edit(ctx, ref, text, art)
		r.opts.Store.PutChatMessage(key, ref)
		return
	}
	if ref, ok := r.opts.Store.ChatMessage(key); ok {
		r.edit(ctx, ref, text, art)
		return
	}
	if text == "" {
		r.log.Debug("sent_artifact_empty", "path", art.Path)
		return
	}
	if ref, ok := r.send(ctx, r.opts.ChatID, text, telegram.SendOptions{Silent: true}, art); ok {
		r.opts.Store.PutChatMessage(key, ref)
	}
}

const receivedKeyPrefix = "rx:"

func receivedText(kind radio.Kind, text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	switch kind {
	case radio.PrivateReceived:
		return "Private message received: " + text
	case radio.PrivateReceivedAcked:
		return "Private message received and acknowledgment sent: " + text
	case radio.BeaconIntercepted:
		return "Beacon: " + text
	default:
		return "Message intercepted: " + text
	}
}

func (r *Router) handleReceived(ctx context.Context, desc radio.Descriptor, art radio.Artifact, payload radio.Payload) {
	chatID := r.opts.ChatID
	silent := desc.Kind == radio.Intercepted || desc.Kind == radio.BeaconIntercepted
	if desc.Kind == radio.BeaconIntercepted && r.opts.BeaconChatID != 0 {
		chatID = r.opts.BeaconChatID
	}
	text := receivedText(desc.Kind, art.Text)
	// Receptions get their own namespace so a send in the same second is not edited.
	key := receivedKeyPrefix + desc.CorrelationKey()

	// A second artifact for the same reception (e.g. after the ack went out)
	// updates the existing notification and must not repeat command replies.
	if ref, ok := r.opts.Store.ChatMessage(key); ok {
		r.edit(ctx, ref, text, art)
		return
	}
	ref, ok := r.send(ctx, chatID, text, telegram.SendOptions{Silent: silent}, art)
	if ok {
		r.opts.Store.PutChatMessage(key, ref)
	}

	for _, cmd := range payload.Commands {
		metrics.CommandsTotal.WithLabelValues(cmd.Kind.String(), strconv.FormatBool(cmd.Addressed)).Inc()
		r.runCommand(ctx, chatID, cmd, payload.Header, art)
	}
}

func (r *Router) runCommand(ctx context.Context, chatID int64, cmd radio.Command, header *radio.Header, art radio.Artifact) {
	if cmd.Kind != radio.CommandMapLink && !cmd.Addressed {
		r.log.Debug("command_not_addressed", "kind", cmd.Kind.String(), "path", art.Path)
		return
	}
	speed := r.opts.Speed
	if header != nil && header.Speed > 0 {
		speed = header.Speed
	}

	switch cmd.Kind {
	case radio.CommandMapLink:
		r.send(ctx, chatID, MapLink(cmd.Lat, cmd.Lon), telegram.SendOptions{}, art)

	case radio.CommandWeather:
		note := fmt.Sprintf("%s requested weather at %s %s", cmd.From, formatCoord(cmd.Lat), formatCoord(cmd.Lon))
		r.send(ctx, chatID, note, telegram.SendOptions{Silent: true}, art)
		reply := weather.FailureText
		if r.opts.Weather != nil {
			forecast, err := r.opts.Weather.Forecast(ctx, cmd.Lat, cmd.Lon)
			if err != nil {
				r.log.Warn("weather_lookup_failed", "path", art.Path, "from", cmd.From, "error", outputfmt.FormatErrorForDisplay(err))
			} else if strings.TrimSpace(forecast) != "" {
				reply = forecast
			}
		}
		for _, chunk := range transmit.ChunkText(reply, transmit.MaxChunkChars) {
			r.transmit(ctx, transmit.NewRequest(cmd.From, speed, true, chunk))
		}

	case radio.CommandMailbox:
		text, ok := r.opts.Store.Mailbox(cmd.From)
		if !ok {
			text = NoMessagesText
		}
		r.transmit(ctx, transmit.NewRequest(cmd.From, speed, false, text))

	case radio.CommandPing:
		reply := "pong"
		if cmd.ErrorRate != "" {
			reply += " ER=" + cmd.ErrorRate
		}
		req := transmit.NewRequest(cmd.From, speed, false, reply)
		delay := retryutil.Jitter(r.opts.PingMinDelay, r.opts.PingMaxDelay)
		r.opts.Schedule(ctx, "ping_reply", delay, func(ctx context.Context) error {
			return r.transmit(ctx, req)
		})
	}
}

// MapLink renders an OpenStreetMap link centred on lat,lon.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%s&mlon=%s&zoom=12", formatCoord(lat), formatCoord(lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OutboundRequest is an operator message to relay onto the radio network.
type OutboundRequest struct {
	ChatID    int64
	MessageID int64
	// To falls back to the default destination when empty.
	To     string
	Speed  int
	Resend bool
	Text   string
}

// Relay transmits an operator message, remembers it for mailbox requests and
// echoes it to chat so the later sent artifact can edit the echo in place.
func (r *Router) Relay(ctx context.Context, in OutboundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	to := strings.TrimSpace(in.To)
	if to == "" {
		to = strings.TrimSpace(r.opts.DefaultDestination)
	}
	speed := in.Speed
	if speed <= 0 {
		speed = r.opts.Speed
	}
	text := strings.TrimSpace(in.Text)
	if suffix := strings.TrimSpace(r.opts.Suffix); suffix != "" && text != "" {
		text += " " + suffix
	}
	req := transmit.NewRequest(to, speed, in.Resend, text)
	if err := req.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Text) > transmit.MaxChunkChars {
		return fmt.Errorf("%w: %d > %d", ErrTextTooLong, utf8.RuneCountInString(req.Text), transmit.MaxChunkChars)
	}
	if err := r.transmit(ctx, req); err != nil {
		return err
	}
	r.opts.Store.PutMailbox(req.To, req.Text)

	art := radio.Artifact{Path: fmt.Sprintf("chat/%d/%d", in.ChatID, in.MessageID), Text: req.Text, CreatedAt: r.opts.Now()}
	if ref, ok := r.send(ctx, in.ChatID, req.Text, telegram.SendOptions{ReplyToMessageID: in.MessageID, Silent: true}, art); ok {
		r.opts.Store.PutPendingEcho(NormalizeText(req.Text), ref)
	}
	r.mirrorRelay(req, art)
	return nil
}

func (r *Router) transmit(ctx context.Context, req transmit.Request) error {
	err := r.opts.Sink.Transmit(ctx, req)
	metrics.TransmitsTotal.WithLabelValues(r.opts.Sink.Name(), metrics.Result(err)).Inc()
	if err != nil {
		r.log.Warn("transmit_failed", "sink", r.opts.Sink.Name(), "to", req.To, "text", req.Text, "error", err.Error())
		return err
	}
	r.log.Info("transmit", "sink", r.opts.Sink.Name(), "to", req.To, "speed", req.Speed, "resend", req.Resend)
	return nil
}

func (r *Router) send(ctx context.Context, chatID int64, text string, opts telegram.SendOptions, art radio.Artifact) (ChatRef, bool) {
	id, err := r.opts.Chat.Send(ctx, chatID, text, opts)
	metrics.ChatActionsTotal.WithLabelValues("send", metrics.Result(err)).Inc()
	if err != nil {
		r.log.Warn("router_send_failed", "chat_id", chatID, "path", art.Path, "text", art.Text, "error", outputfmt.FormatErrorForDisplay(err))
		return ChatRef{}, false
	}
	return ChatRef{ChatID: chatID, MessageID: id}, true
}

func (r *Router) edit(ctx context.Context, ref ChatRef, text string, art radio.Artifact) {
	err := r.opts.Chat.Edit(ctx, ref.ChatID, ref.MessageID, text)
	metrics.ChatActionsTotal.WithLabelValues("edit", metrics.Result(err)).Inc()
	if err != nil {
		r.log.Warn("router_edit_failed",
			"chat_id", ref.ChatID,
			"message_id", ref.MessageID,
			"path", art.Path,
			"text", art.Text,
			"error", outputfmt.FormatErrorForDisplay(err),
		)
	}
}

func (r *Router) mirror(source string, desc radio.Descriptor, art radio.Artifact, payload *radio.Payload) {
	if r.opts.Events == nil {
		return
	}
	ev := events.RadioEvent{
		Path:  desc.Path,
		Kind:  desc.Kind.String(),
		Date:  desc.Date,
		Time:  desc.Time,
		From:  desc.SenderID,
		To:    desc.RecipientID,
		Retry: desc.Retry,
		Text:  art.Text,
	}
	if payload != nil {
		if payload.Header != nil {
			ev.From, ev.To = payload.Header.From, payload.Header.To
			ev.Addressed = payload.Header.To == r.opts.OwnID
		}
		for _, cmd := range payload.Commands {
			ev.Commands = append(ev.Commands, cmd.Kind.String())
		}
	}
	env, err := events.NewEnvelope(source, desc.CorrelationKey(), ev, r.opts.Now())
	if err != nil {
		r.log.Warn("event_envelope_invalid", "path", art.Path, "error", err.Error())
		return
	}
	r.opts.Events.Emit(env)
}

func (r *Router) mirrorRelay(req transmit.Request, art radio.Artifact) {
	if r.opts.Events == nil {
		return
	}
	env, err := events.NewEnvelope(events.SourceChat, "", events.RadioEvent{
		Path: art.Path,
		Kind: "relay",
		From: r.opts.OwnID,
		To:   req.To,
		Text: req.Text,
	}, r.opts.Now())
	if err != nil {
		r.log.Warn("event_envelope_invalid", "path", art.Path, "error", err.Error())
		return
	}
	r.opts.Events.Emit(env)
}
