package logstream

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReconnectBase = 2 * time.Second
	maxBackoff           = 30 * time.Second
)

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

// ReconnectOptions configure a Reconnector.
type ReconnectOptions struct {
	// Base is the delay before the first retry; zero uses 2s.
	Base time.Duration
	// MaxAttempts bounds consecutive failed attempts; zero retries forever.
	MaxAttempts int
	Logger      *zap.SugaredLogger
}

// Reconnector keeps a Client connected by watching its state transitions and
// redialling after Failed or Closed with capped exponential backoff. The
// Client itself stays unaware of it.
type Reconnector struct {
	client      *Client
	base        time.Duration
	maxAttempts int
	log         *zap.SugaredLogger
	after       func(time.Duration) <-chan time.Time
}

// NewReconnector wraps client.
func NewReconnector(client *Client, opts ReconnectOptions) *Reconnector {
	base := opts.Base
	if base <= 0 {
		base = defaultReconnectBase
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconnector{
		client:      client,
		base:        base,
		maxAttempts: opts.MaxAttempts,
		log:         log,
		after:       time.After,
	}
}

// Run connects immediately and then supervises the connection until ctx is
// cancelled, the client is closed, or MaxAttempts consecutive attempts fail.
func (r *Reconnector) Run(ctx context.Context) error {
	if err := r.connect(ctx); errors.Is(err, ErrClosed) {
		return nil
	}

	failures := 0
	for {
		changed := r.client.Changed()
		status := r.client.Status()
		if status.Shutdown {
			return nil
		}

		switch status.State {
		case Open:
			failures = 0
		case Closed, Failed:
			if r.maxAttempts > 0 && failures >= r.maxAttempts {
				r.log.Warnw("ws_reconnect_gave_up", "addr", r.client.Addr(), "attempts", failures)
				return ErrRetriesExhausted
			}
			delay := calculateBackoff(failures, r.base)
			r.log.Infow("ws_reconnect_scheduled", "addr", r.client.Addr(), "delay", delay, "failures", failures)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.after(delay):
			}
			failures++
			if err := r.connect(ctx); errors.Is(err, ErrClosed) {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (r *Reconnector) connect(ctx context.Context) error {
	err := r.client.Connect(ctx)
	if err != nil && !errors.Is(err, ErrClosed) {
		r.log.Debugw("ws_reconnect_attempt_failed", "addr", r.client.Addr(), "err", err)
	}
	return err
}
