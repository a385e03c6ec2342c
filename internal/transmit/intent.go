package transmit

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultAMPath        = "am"
	defaultComponent     = "ru.radial.nogg.hfpager/ru.radial.full.hfpager.MainActivity"
	defaultIntentTimeout = 10 * time.Second
)

// CommandRunner executes an external program; tests substitute a recorder.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

type IntentSinkOptions struct {
	AMPath    string
	Component string
	Timeout   time.Duration
	Run       CommandRunner
}

// IntentSink starts the HFpager activity with an Android SEND intent.
type IntentSink struct {
	amPath    string
	component string
	timeout   time.Duration
	run       CommandRunner
}

func NewIntentSink(opts IntentSinkOptions) *IntentSink {
	s := &IntentSink{
		amPath:    strings.TrimSpace(opts.AMPath),
		component: strings.TrimSpace(opts.Component),
		timeout:   opts.Timeout,
		run:       opts.Run,
	}
	if s.amPath == "" {
		s.amPath = defaultAMPath
	}
	if s.component == "" {
		s.component = defaultComponent
	}
	if s.timeout <= 0 {
		s.timeout = defaultIntentTimeout
	}
	if s.run == nil {
		s.run = execRunner
	}
	return s
}

func (s *IntentSink) Name() string { return "intent" }

// IntentArgs returns the am arguments for req. The subject carries the
// ack-request and resend bits as "Flags:<ask>,<resend>".
func (s *IntentSink) IntentArgs(req Request) []string {
	return []string{
		"start", "--user", "0",
		"-n", s.component,
		"-a", "android.intent.action.SEND",
		"--es", "android.intent.extra.TEXT", req.Text,
		"-t", "text/plain",
		"--ei", "android.intent.extra.INDEX", req.To,
		"--es", "android.intent.extra.SUBJECT", "Flags:" + boolFlag(req.AskAck) + "," + boolFlag(req.Resend),
	}
}

func (s *IntentSink) Transmit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.run(runCtx, s.amPath, s.IntentArgs(req)...); err != nil {
		return fmt.Errorf("intent transmit to %s: %w", req.To, err)
	}
	return nil
}
