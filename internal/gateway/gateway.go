// Package gateway runs the chat loop and the pager directory loop and feeds
// both into one serialized queue in front of the router.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/R6DJO/HFpager-bot/internal/metrics"
	"github.com/R6DJO/HFpager-bot/internal/outputfmt"
	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/retryutil"
	"github.com/R6DJO/HFpager-bot/internal/router"
	"github.com/R6DJO/HFpager-bot/internal/telegram"
	"github.com/R6DJO/HFpager-bot/internal/worker"
)

// Router is what the gateway drives.
type Router interface {
	HandleArtifact(ctx context.Context, art radio.Artifact)
	Relay(ctx context.Context, req router.OutboundRequest) error
}

// ArtifactSource delivers new pager artifacts until ctx ends.
type ArtifactSource interface {
	Run(ctx context.Context, handle func(context.Context, radio.Artifact)) error
}

// UpdateSource long-polls the chat service.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
}

type Options struct {
	OwnID              string
	Callsign           string
	DefaultDestination string
	ChatID             int64
	OwnerChatID        int64
	PollTimeout        time.Duration
	QueueSize          int

	Router    Router
	Artifacts ArtifactSource
	Updates   UpdateSource
	Chat      router.ChatClient

	Logger *slog.Logger
	Now    func() time.Time
}

type job struct {
	artifact *radio.Artifact
	relay    *router.OutboundRequest
}

type Gateway struct {
	opts  Options
	log   *slog.Logger
	start time.Time
	queue *worker.Queue[job]
}

func New(opts Options) (*Gateway, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("gateway: router is required")
	}
	if opts.Artifacts == nil && opts.Updates == nil {
		return nil, fmt.Errorf("gateway: nothing to run")
	}
	if opts.Updates != nil && opts.Chat == nil {
		return nil, fmt.Errorf("gateway: chat client is required with an update source")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		opts:  opts,
		log:   opts.Logger,
		queue: worker.New[job](opts.QueueSize, opts.Logger),
	}, nil
}

// Run blocks until ctx is cancelled. Only the first loop error is returned;
// per-event failures are logged by the loops themselves.
func (g *Gateway) Run(ctx context.Context) error {
	g.start = g.opts.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.queue.Start(ctx, g.handle)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		g.log.Error(name+"_stopped", "error", err.Error())
		once.Do(func() {
			firstErr = fmt.Errorf("%s: %w", name, err)
			cancel()
		})
	}

	if g.opts.Artifacts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("watcher", g.opts.Artifacts.Run(ctx, g.enqueueArtifact))
		}()
	}
	if g.opts.Updates != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("chat", g.runChat(ctx))
		}()
	}

	wg.Wait()
	cancel()
	<-g.queue.Done()
	g.log.Info("gateway_stopped")
	return firstErr
}

func (g *Gateway) enqueueArtifact(ctx context.Context, art radio.Artifact) {
	if err := g.queue.Enqueue(ctx, job{artifact: &art}); err != nil && ctx.Err() == nil {
		g.log.Warn("gateway_enqueue_failed", "path", art.Path, "error", err.Error())
	}
}

func (g *Gateway) handle(ctx context.Context, j job) {
	switch {
	case j.artifact != nil:
		g.opts.Router.HandleArtifact(ctx, *j.artifact)
	case j.relay != nil:
		req := *j.relay
		if err := g.opts.Router.Relay(ctx, req); err != nil {
			g.log.Warn("relay_failed", "chat_id", req.ChatID, "to", req.To, "text", req.Text, "error", err.Error())
			g.reply(ctx, req.ChatID, req.MessageID, "Not sent: "+outputfmt.FormatErrorForDisplay(err), "")
		}
	}
}

// accepts reports whether a chat message should be acted on: it must come from
// the main or owner chat and be newer than this process.
func (g *Gateway) accepts(msg *telegram.Message) bool {
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return false
	}
	if msg.From != nil && msg.From.IsBot {
		return false
	}
	id := msg.Chat.ID
	if id != g.opts.ChatID && (g.opts.OwnerChatID == 0 || id != g.opts.OwnerChatID) {
		return false
	}
	return msg.Date >= g.start.Unix()
}

func (g *Gateway) runChat(ctx context.Context) error {
	var offset int64
	backoff := time.Duration(0)
	g.log.Info("chat_loop_started", "chat_id", g.opts.ChatID, "poll_timeout", g.opts.PollTimeout.String())
	for {
		updates, next, err := g.opts.Updates.GetUpdates(ctx, offset, g.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				g.log.Info("chat_loop_stopped")
				return nil
			}
			if telegram.IsPollTimeoutError(err) {
				g.log.Debug("chat_get_updates_timeout", "error", err.Error())
				continue
			}
			backoff = retryutil.Backoff(backoff, 30*time.Second)
			if wait := telegram.RetryAfter(err); wait > 0 {
				backoff = wait
			}
			g.log.Warn("chat_get_updates_error", "error", outputfmt.FormatErrorForDisplay(err), "retry_in", backoff.String())
			if !retryutil.Sleep(ctx, backoff) {
				return nil
			}
			continue
		}
		backoff = 0
		offset = next

		for _, u := range updates {
			if !g.accepts(u.Message) {
				continue
			}
			g.handleChatMessage(ctx, u.Message)
		}
	}
}

func (g *Gateway) handleChatMessage(ctx context.Context, msg *telegram.Message) {
	cmd, err := ParseChatCommand(msg.Text, g.opts.OwnID)
	if err != nil {
		g.reply(ctx, msg.Chat.ID, msg.MessageID, "Not sent: "+err.Error(), "")
		return
	}
	switch cmd.Kind {
	case ChatHelp:
		g.reply(ctx, msg.Chat.ID, msg.MessageID, HelpText(g.opts.Callsign, g.opts.OwnID, g.opts.DefaultDestination), telegram.ParseModeMarkdownV2)
	case ChatRelay:
		g.log.Info("chat_relay_request", "chat_id", msg.Chat.ID, "to", cmd.To, "resend", cmd.Resend)
		req := &router.OutboundRequest{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			To:        cmd.To,
			Speed:     cmd.Speed,
			Resend:    cmd.Resend,
			Text:      cmd.Text,
		}
		if err := g.queue.Enqueue(ctx, job{relay: req}); err != nil && ctx.Err() == nil {
			g.log.Warn("gateway_enqueue_failed", "chat_id", msg.Chat.ID, "error", err.Error())
		}
	default:
		g.log.Debug("chat_message_ignored", "chat_id", msg.Chat.ID, "text", msg.Text)
	}
}

func (g *Gateway) reply(ctx context.Context, chatID, messageID int64, text, parseMode string) {
	if g.opts.Chat == nil {
		return
	}
	_, err := g.opts.Chat.Send(ctx, chatID, text, telegram.SendOptions{ReplyToMessageID: messageID, ParseMode: parseMode})
	metrics.ChatActionsTotal.WithLabelValues("reply", metrics.Result(err)).Inc()
	if err != nil {
		g.log.Warn("chat_reply_failed", "chat_id", chatID, "error", outputfmt.FormatErrorForDisplay(err))
	}
}
