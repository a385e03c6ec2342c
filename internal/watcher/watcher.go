// Package watcher discovers new message files written by HFpager.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/R6DJO/HFpager-bot/internal/metrics"
	"github.com/R6DJO/HFpager-bot/internal/radio"
)

const DefaultInterval = 2 * time.Second

// settleDelay lets HFpager finish writing a file before an fsnotify-triggered poll.
const settleDelay = 250 * time.Millisecond

type Options struct {
	Root     string
	Interval time.Duration
	// Encoding decodes file contents; nil means Windows-1251.
	Encoding encoding.Encoding
	// Notify enables fsnotify wake-ups on top of the polling interval.
	Notify bool
	Logger *slog.Logger
}

// Watcher reports each file under Root once, the first time it is seen.
// Poll and Run must not be called concurrently.
type Watcher struct {
	root     string
	interval time.Duration
	enc      encoding.Encoding
	notify   bool
	log      *slog.Logger

	seen map[string]struct{}
	fw   *fsnotify.Watcher
}

func New(opts Options) (*Watcher, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("watcher: root directory is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Encoding == nil {
		opts.Encoding = charmap.Windows1251
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		root:     filepath.Clean(root),
		interval: opts.Interval,
		enc:      opts.Encoding,
		notify:   opts.Notify,
		log:      opts.Logger,
		seen:     map[string]struct{}{},
	}, nil
}

// EncodingByName maps a config value to a text encoding.
func EncodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	case "koi8-r":
		return charmap.KOI8R, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// list returns every regular file below the root as a slash-separated relative
// path. A missing root is an empty listing.
func (w *Watcher) list() (map[string]struct{}, error) {
	out := map[string]struct{}{}
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prime records the current listing as already seen.
func (w *Watcher) Prime() error {
	current, err := w.list()
	if err != nil {
		return err
	}
	w.seen = current
	return nil
}

// Poll returns the paths that appeared since the previous call, sorted.
func (w *Watcher) Poll(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := w.list()
	if err != nil {
		return nil, err
	}
	var fresh []string
	for p := range current {
		if _, ok := w.seen[p]; !ok {
			fresh = append(fresh, p)
		}
	}
	sort.Strings(fresh)
	w.seen = current
	return fresh, nil
}

// Read loads one artifact and decodes it from the configured codepage.
func (w *Watcher) Read(rel string) (radio.Artifact, error) {
	full := filepath.Join(w.root, filepath.FromSlash(rel))
	raw, err := os.ReadFile(full)
	if err != nil {
		return radio.Artifact{}, err
	}
	text, err := w.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return radio.Artifact{}, fmt.Errorf("decode %s: %w", rel, err)
	}
	created := time.Now()
	if info, err := os.Stat(full); err == nil {
		created = info.ModTime()
	}
	return radio.Artifact{Path: rel, Text: string(text), CreatedAt: created}, nil
}

// Run primes the snapshot, then hands every new artifact to handle until ctx
// is cancelled. Files present at start are treated as history.
func (w *Watcher) Run(ctx context.Context, handle func(context.Context, radio.Artifact)) error {
	if handle == nil {
		return fmt.Errorf("watcher: nil handler")
	}
	if err := w.Prime(); err != nil {
		w.log.Warn("watcher_prime_error", "root", w.root, "error", err.Error())
	}

	var wake <-chan fsnotify.Event
	var notifyErrs <-chan error
	if w.notify {
		fw, err := w.startNotify()
		if err != nil {
			w.log.Warn("watcher_fsnotify_unavailable", "root", w.root, "error", err.Error())
		} else {
			w.fw = fw
			defer func() {
				fw.Close()
				w.fw = nil
			}()
			wake, notifyErrs = fw.Events, fw.Errors
		}
	}

	w.log.Info("watcher_started", "root", w.root, "interval", w.interval.String(), "fsnotify", wake != nil)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher_stopped", "root", w.root)
			return nil
		case <-ticker.C:
		case <-settle:
			settle = nil
		case ev, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addDir(ev.Name)
			}
			if settle == nil {
				settle = time.After(settleDelay)
			}
			continue
		case err, ok := <-notifyErrs:
			if !ok {
				notifyErrs = nil
				continue
			}
			w.log.Warn("watcher_fsnotify_error", "error", err.Error())
			continue
		}
		w.dispatch(ctx, handle)
	}
}

func (w *Watcher) dispatch(ctx context.Context, handle func(context.Context, radio.Artifact)) {
	fresh, err := w.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("watcher_poll_error", "root", w.root, "error", err.Error())
		}
		return
	}
	for _, rel := range fresh {
		if ctx.Err() != nil {
			return
		}
		art, err := w.Read(rel)
		if err != nil {
			metrics.WatcherReadErrors.Inc()
			w.log.Warn("watcher_read_error", "path", rel, "error", err.Error())
			continue
		}
		handle(ctx, art)
	}
}
