package retryutil

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

const defaultRunTimeout = 15 * time.Second

// AsyncAfter runs fn on its own goroutine once delay has passed. The run is
// abandoned if ctx is cancelled first; fn gets a context bounded by timeout.
func AsyncAfter(ctx context.Context, logger *slog.Logger, name string, delay, timeout time.Duration, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if delay < 0 {
		delay = 0
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	if logger != nil {
		logger.Debug(name+"_scheduled", "delay", delay.String(), "timeout", timeout.String())
	}
	go func() {
		if !Sleep(ctx, delay) {
			if logger != nil {
				logger.Debug(name+"_cancelled", "error", ctx.Err())
			}
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := fn(runCtx); err != nil {
			if logger != nil {
				logger.Warn(name+"_failed", "error", err.Error())
			}
			return
		}
		if logger != nil {
			logger.Debug(name + "_ok")
		}
	}()
}

// Sleep waits for d and reports whether it completed before ctx was done.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Jitter returns a uniformly random duration in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}

// Backoff doubles d up to max.
func Backoff(d, max time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	d *= 2
	if max > 0 && d > max {
		return max
	}
	return d
}
