package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/codeflow/panel/internal/document"
	"github.com/codeflow/panel/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	fetchKey            = "status"
)

// ErrStopped is returned by Start and Refresh once the poller is stopped.
var ErrStopped = errors.New("status poller stopped")

// Fetcher retrieves one status document. Decode failures count as fetch
// failures.
type Fetcher interface {
	FetchStatus(ctx context.Context) (document.Document, error)
}

// FetchError reports a failed status poll.
type FetchError struct {
	At  time.Time
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch status: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configure a Poller.
type Options struct {
	Fetcher Fetcher
	Logger  *zap.SugaredLogger
	// Timeout bounds one fetch; zero leaves it to the transport.
	Timeout time.Duration
	Now     func() time.Time
}

// Poller periodically fetches engine status and keeps the latest snapshot.
// A poller is single-use: once stopped it cannot be started again.
type Poller struct {
	fetcher Fetcher
	log     *zap.SugaredLogger
	timeout time.Duration
	now     func() time.Time

	// Snapshots are immutable, so State copies share them without cloning.
	store *state.Store[State]
	group singleflight.Group

	// ctx spans the poller's lifetime; fetches run under it rather than
	// under any one caller's context because their result is shared.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New returns a Poller. Nothing is fetched until Start or Refresh.
func New(opts Options) *Poller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		fetcher: opts.Fetcher,
		log:     log,
		timeout: opts.Timeout,
		now:     now,
		store:   state.NewStore(State{}, nil),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start fetches immediately and then every interval until Stop. A second
// Start is a no-op.
func (p *Poller) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return nil
	}
	p.started = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			p.poll()
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop cancels the schedule and any fetch in flight. Results that land
// afterwards are discarded. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.store.Update(func(s *State) bool {
		if !s.Fetching {
			return false
		}
		s.Fetching = false
		return true
	})
	p.log.Debugw("status_poller_stopped")
}

// Refresh fetches now without disturbing the schedule. When a fetch is
// already in flight, scheduled or manual, Refresh waits for that one and
// returns its result instead of issuing another request.
func (p *Poller) Refresh(ctx context.Context) (State, error) {
	if p.isStopped() {
		return p.State(), ErrStopped
	}
	ch := p.group.DoChan(fetchKey, p.fetch)
	select {
	case res := <-ch:
		st := p.State()
		if res.Err != nil {
			return st, res.Err
		}
		return st, nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

// State returns a copy of the observable state.
func (p *Poller) State() State {
	return p.store.Snapshot()
}

// Changed returns a channel closed at the next state change.
func (p *Poller) Changed() <-chan struct{} {
	return p.store.Changed()
}

func (p *Poller) poll() {
	ch := p.group.DoChan(fetchKey, p.fetch)
	select {
	case <-ch:
	case <-p.ctx.Done():
	}
}

// fetch runs inside the singleflight group: one network request per call.
func (p *Poller) fetch() (any, error) {
	if !p.apply(func(s *State) { s.Fetching = true }) {
		return nil, ErrStopped
	}

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		doc document.Document
		err error
	)
	if p.fetcher == nil {
		err = errors.New("no status fetcher configured")
	} else {
		doc, err = p.fetcher.FetchStatus(ctx)
	}
	at := p.now()

	if err != nil {
		ferr := &FetchError{At: at, Err: err}
		failures := 0
		applied := p.apply(func(s *State) {
			s.Err = ferr
			s.ConsecutiveFailures++
			s.Fetching = false
			failures = s.ConsecutiveFailures
		})
		if !applied {
			return nil, ErrStopped
		}
		p.log.Warnw("status_poll_failed", "err", err, "failures", failures)
		return nil, ferr
	}

	snap := NewSnapshot(doc, at)
	applied := p.apply(func(s *State) {
		s.Snapshot = snap
		s.LastUpdated = at
		s.Err = nil
		s.ConsecutiveFailures = 0
		s.Fetching = false
	})
	if !applied {
		return nil, ErrStopped
	}
	p.log.Debugw("status_poll_ok", "keys", len(doc))
	return snap, nil
}

// apply mutates the state unless the poller has been stopped, so a fetch
// completing after Stop never lands.
func (p *Poller) apply(fn func(*State)) bool {
	applied := false
	p.store.Update(func(s *State) bool {
		if p.isStopped() {
			return false
		}
		fn(s)
		applied = true
		return true
	})
	return applied
}

func (p *Poller) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
