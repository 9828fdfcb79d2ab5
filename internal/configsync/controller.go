// Package configsync keeps a locally edited copy of the engine's config
// document in step with its stored version.
//
// The controller holds two documents: baseline, the last value read from or
// written to the source, and working, the value the user is editing. The
// controller is dirty whenever the two differ structurally.
package configsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/codeflow/panel/internal/document"
	"github.com/codeflow/panel/internal/state"
)

const (
	loadKey = "load"
	saveKey = "save"
)

// Source reads and writes the serialized document. Write must be atomic from
// the caller's point of view.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Codec converts between the serialized form and a document.
type Codec interface {
	Decode(data []byte) (document.Document, error)
	Encode(doc document.Document) ([]byte, error)
}

// Options configure a Controller.
type Options struct {
	Source Source
	Codec  Codec
	Logger *zap.SugaredLogger
	// ConflictCheck makes Save re-read the source and refuse to overwrite a
	// document that changed since the last load or save.
	ConflictCheck bool
	Now           func() time.Time
}

// State is the controller's observable state.
type State struct {
	Loaded    bool
	Loading   bool
	Saving    bool
	Dirty     bool
	Err       error // *LoadError or *SaveError from the latest operation
	LastSaved time.Time
}

type fingerprint [32]byte

// Controller tracks edits against a baseline and saves them. All methods are
// safe for concurrent use.
type Controller struct {
	source        Source
	codec         Codec
	log           *zap.SugaredLogger
	conflictCheck bool
	now           func() time.Time

	loads singleflight.Group
	saves singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	// io serializes load and save against the source, so a load never reads
	// the document a save is replacing. Taken before mu.
	io sync.Mutex

	mu        sync.Mutex
	baseline  document.Document
	working   document.Document
	loaded    bool
	loading   bool
	saving    bool
	err       error
	lastSaved time.Time
	remote    fingerprint
	hasRemote bool
	// replay holds edits made while a load is in flight; they are applied
	// again on top of the loaded document.
	replay []func(document.Document) document.Document
	closed bool

	signal state.Signal
}

// New returns a Controller with empty documents. Call Load to populate it.
func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:        opts.Source,
		codec:         opts.Codec,
		log:           log,
		conflictCheck: opts.ConflictCheck,
		now:           now,
		ctx:           ctx,
		cancel:        cancel,
		baseline:      document.New(),
		working:       document.New(),
	}
}

// Load reads and decodes the source, replacing both documents. On failure
// both documents keep their previous values. Concurrent loads share one read.
func (c *Controller) Load(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	ch := c.loads.DoChan(loadKey, c.load)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) load() (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.loading = true
	c.replay = nil
	c.mu.Unlock()
	c.signal.Notify()

	// Edits made while waiting for a save are replayed like any other.
	c.io.Lock()
	defer c.io.Unlock()

	data, err := c.read(c.ctx)
	if err != nil {
		return nil, c.loadFailed(&LoadError{Op: "read", Err: err})
	}
	doc, err := c.codec.Decode(data)
	if err != nil {
		return nil, c.loadFailed(&LoadError{Op: "decode", Err: err})
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	working := doc.Clone()
	for _, fn := range c.replay {
		working = fn(working)
	}
	replayed := len(c.replay)
	c.baseline = doc
	c.working = working
	c.replay = nil
	c.loading = false
	c.loaded = true
	c.err = nil
	c.remote, c.hasRemote = blake3.Sum256(data), true
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Infow("config_loaded", "keys", len(doc), "replayed_edits", replayed)
	return nil, nil
}

func (c *Controller) loadFailed(lerr *LoadError) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.loading = false
	c.replay = nil
	c.err = lerr
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Warnw("config_load_failed", "op", lerr.Op, "err", lerr.Err)
	return lerr
}

// Edit merges patch into the working document. A nil value in patch deletes
// the key. The baseline is never touched.
func (c *Controller) Edit(patch document.Document) error {
	patch = patch.Clone()
	return c.mutate(func(d document.Document) document.Document {
		return document.Merge(d, patch)
	})
}

// Replace swaps the whole working document.
func (c *Controller) Replace(doc document.Document) error {
	doc = doc.Clone()
	if doc == nil {
		doc = document.New()
	}
	return c.mutate(func(document.Document) document.Document {
		return doc.Clone()
	})
}

func (c *Controller) mutate(fn func(document.Document) document.Document) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.working = fn(c.working)
	if c.loading {
		c.replay = append(c.replay, fn)
	}
	c.mu.Unlock()
	c.signal.Notify()
	return nil
}

// Save writes the working document when it differs from the baseline. A
// call made while another save is in flight waits for that save and returns
// its result, so overlapping calls produce a single write. The value written
// is the working document as it was when the write began; later edits remain
// unsaved.
func (c *Controller) Save(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	ch := c.saves.DoChan(saveKey, c.save)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) save() (any, error) {
	c.io.Lock()
	defer c.io.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if document.Equal(c.working, c.baseline) {
		c.mu.Unlock()
		return nil, nil
	}
	snapshot := c.working.Clone()
	expected, checkRemote := c.remote, c.conflictCheck && c.hasRemote
	c.saving = true
	c.mu.Unlock()
	c.signal.Notify()

	data, err := c.codec.Encode(snapshot)
	if err != nil {
		return nil, c.saveFailed(&SaveError{Op: "encode", Err: err})
	}
	if checkRemote {
		current, err := c.read(c.ctx)
		if err != nil {
			return nil, c.saveFailed(&SaveError{Op: "check", Err: err})
		}
		if blake3.Sum256(current) != expected {
			return nil, c.saveFailed(&SaveError{Op: "check", Err: ErrConflict})
		}
	}
	if err := c.write(c.ctx, data); err != nil {
		return nil, c.saveFailed(&SaveError{Op: "write", Err: err})
	}

	at := c.now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.baseline = snapshot
	c.saving = false
	c.err = nil
	c.lastSaved = at
	c.remote, c.hasRemote = blake3.Sum256(data), true
	dirty := !document.Equal(c.working, c.baseline)
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Infow("config_saved", "bytes", len(data), "still_dirty", dirty)
	return nil, nil
}

func (c *Controller) saveFailed(serr *SaveError) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.saving = false
	c.err = serr
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Warnw("config_save_failed", "op", serr.Op, "err", serr.Err)
	return serr
}

// Reset discards local edits by copying the baseline into the working
// document.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.working = c.baseline.Clone()
	c.replay = nil
	c.mu.Unlock()
	c.signal.Notify()
}

// IsDirty reports whether the working document differs from the baseline.
func (c *Controller) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !document.Equal(c.working, c.baseline)
}

// NeedsConfirmation reports whether leaving now would lose edits. Hosts
// query it before quitting or navigating away.
func (c *Controller) NeedsConfirmation() bool {
	return c.IsDirty()
}

// Working returns a copy of the working document.
func (c *Controller) Working() document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working.Clone()
}

// Baseline returns a copy of the baseline document.
func (c *Controller) Baseline() document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline.Clone()
}

// State returns the observable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Loaded:    c.loaded,
		Loading:   c.loading,
		Saving:    c.saving,
		Dirty:     !document.Equal(c.working, c.baseline),
		Err:       c.err,
		LastSaved: c.lastSaved,
	}
}

// Changed returns a channel closed at the next state change.
func (c *Controller) Changed() <-chan struct{} {
	return c.signal.Changed()
}

// Close cancels in-flight reads and writes; their results are discarded.
// Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.loading = false
	c.saving = false
	c.replay = nil
	c.mu.Unlock()
	c.cancel()
	c.signal.Notify()
}

func (c *Controller) read(ctx context.Context) ([]byte, error) {
	if c.source == nil {
		return nil, errors.New("no config source configured")
	}
	return c.source.Read(ctx)
}

func (c *Controller) write(ctx context.Context, data []byte) error {
	if c.source == nil {
		return errors.New("no config source configured")
	}
	return c.source.Write(ctx, data)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
