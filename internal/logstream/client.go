package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeflow/panel/internal/state"
)

// Conn is an open text stream. ReadText blocks until the next message and
// returns io.EOF once the remote side closed gracefully. Close must unblock a
// pending ReadText.
type Conn interface {
	ReadText() (string, error)
	WriteText(text string) error
	Close() error
}

// Dialer opens a Conn to addr, completing the handshake before returning.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Entry is one received line. Seq reflects arrival order and is never reused
// for the lifetime of the Client, across clears and reconnects alike.
type Entry struct {
	Seq      uint64
	Text     string
	Received time.Time
}

// Status is a point-in-time view of the client.
type Status struct {
	State    ConnectionState
	ConnID   string
	Err      error // most recent TransportError, cleared on the next dial
	Buffered int
	NextSeq  uint64
	Clears   uint64 // number of Clear calls so far
	Shutdown bool
}

// Options configure a Client.
type Options struct {
	Addr   string
	Dialer Dialer
	Logger *zap.SugaredLogger
	Now    func() time.Time
}

// Client maintains one streaming connection and an append-only buffer of
// everything it has received. It never reconnects by itself; see Reconnector.
type Client struct {
	addr   string
	dialer Dialer
	log    *zap.SugaredLogger
	now    func() time.Time

	mu       sync.Mutex
	state    ConnectionState
	conn     Conn
	gen      uint64
	connID   string
	lastErr  error
	entries  []Entry
	nextSeq  uint64
	clears   uint64
	shutdown bool

	signal state.Signal
}

// New returns a Client in the Closed state. Nothing is dialled until Connect.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		addr:   opts.Addr,
		dialer: opts.Dialer,
		log:    log,
		now:    now,
		state:  Closed,
	}
}

// Connect dials the stream and starts receiving. It is a no-op while a
// connection is already Connecting or Open. A dial failure moves the client
// to Failed and is also returned as a *TransportError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.dialer == nil {
		c.mu.Unlock()
		return fmt.Errorf("log stream: no dialer configured")
	}
	if !c.fire(evDial) {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.connID = uuid.NewString()
	connID := c.connID
	c.lastErr = nil
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Debugw("ws_dial", "addr", c.addr, "conn_id", connID)
	conn, err := c.dialer.Dial(ctx, c.addr)

	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		terr := &TransportError{Op: "dial", Addr: c.addr, ConnID: connID, Err: err}
		c.fire(evTransportError)
		c.lastErr = terr
		c.mu.Unlock()
		c.signal.Notify()
		c.log.Warnw("ws_dial_failed", "addr", c.addr, "conn_id", connID, "err", err)
		return terr
	}
	c.conn = conn
	c.fire(evHandshake)
	c.mu.Unlock()
	c.signal.Notify()

	c.log.Infow("ws_open", "addr", c.addr, "conn_id", connID)
	go c.readLoop(gen, connID, conn)
	return nil
}

func (c *Client) readLoop(gen uint64, connID string, conn Conn) {
	for {
		text, err := conn.ReadText()
		if err != nil {
			c.readFailed(gen, connID, conn, err)
			return
		}
		if !c.append(gen, text) {
			return
		}
	}
}

func (c *Client) append(gen uint64, text string) bool {
	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.entries = append(c.entries, Entry{Seq: c.nextSeq, Text: text, Received: c.now()})
	c.nextSeq++
	c.mu.Unlock()
	c.signal.Notify()
	return true
}

func (c *Client) readFailed(gen uint64, connID string, conn Conn, err error) {
	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if errors.Is(err, io.EOF) {
		c.fire(evRemoteClose)
	} else {
		c.fire(evTransportError)
		c.lastErr = &TransportError{Op: "read", Addr: c.addr, ConnID: connID, Err: err}
	}
	c.conn = nil
	next := c.state
	c.mu.Unlock()
	_ = conn.Close()
	c.signal.Notify()

	if next == Failed {
		c.log.Warnw("ws_read_failed", "conn_id", connID, "err", err)
	} else {
		c.log.Infow("ws_closed", "conn_id", connID)
	}
}

// Send writes one text message on the open connection. A write failure is a
// transport failure: the connection is dropped and the client moves to Failed.
func (c *Client) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Open || c.conn == nil {
		c.mu.Unlock()
		return ErrNotOpen
	}
	conn, gen, connID := c.conn, c.gen, c.connID
	c.mu.Unlock()

	err := conn.WriteText(text)
	if err == nil {
		return nil
	}
	terr := &TransportError{Op: "write", Addr: c.addr, ConnID: connID, Err: err}

	c.mu.Lock()
	if !c.shutdown && gen == c.gen && c.fire(evTransportError) {
		c.lastErr = terr
		c.conn = nil
		// Retire the reader of the dropped connection.
		c.gen++
	}
	c.mu.Unlock()
	_ = conn.Close()
	c.signal.Notify()
	c.log.Warnw("ws_write_failed", "conn_id", connID, "err", err)
	return terr
}

// Close releases the transport. Every later call on the client is a no-op;
// the buffer stays readable. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	c.fire(evLocalClose)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.signal.Notify()
	c.log.Debugw("ws_client_closed", "addr", c.addr)
	return err
}

// Clear empties the buffer. Connection state and sequence numbering are
// untouched: the next entry continues from the previous sequence value.
func (c *Client) Clear() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.entries = nil
	c.clears++
	c.mu.Unlock()
	c.signal.Notify()
}

// Entries returns a copy of the buffer in arrival order.
func (c *Client) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Tail returns the current status and the entries a reader is missing when
// it has already seen every entry before seq and clears Clear calls. If the
// buffer was cleared since then, reset is true and entries is the whole
// buffer. Status and entries are read together.
func (c *Client) Tail(seq, clears uint64) (st Status, entries []Entry, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st = c.statusLocked()
	if clears != c.clears {
		return st, append([]Entry(nil), c.entries...), true
	}
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].Seq >= seq })
	return st, append([]Entry(nil), c.entries[i:]...), false
}

// Search returns the buffered entries whose text contains query, ignoring
// case, in arrival order. An empty query returns the whole buffer. The
// buffer is never modified.
func (c *Client) Search(query string) []Entry {
	entries := c.Entries()
	return Filter(entries, query)
}

// Filter is the pure projection behind Search.
func Filter(entries []Entry, query string) []Entry {
	if query == "" {
		return entries
	}
	needle := strings.ToLower(query)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Text), needle) {
			out = append(out, e)
		}
	}
	return out
}

// ConnectionState returns the current state.
func (c *Client) ConnectionState() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current state, last error and buffer counters.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Client) statusLocked() Status {
	return Status{
		State:    c.state,
		ConnID:   c.connID,
		Err:      c.lastErr,
		Buffered: len(c.entries),
		NextSeq:  c.nextSeq,
		Clears:   c.clears,
		Shutdown: c.shutdown,
	}
}

// Addr returns the stream address.
func (c *Client) Addr() string {
	return c.addr
}

// Changed returns a channel closed at the next state or buffer change.
func (c *Client) Changed() <-chan struct{} {
	return c.signal.Changed()
}

// fire applies ev to the state machine. Callers hold c.mu.
func (c *Client) fire(ev event) bool {
	next, ok := transition(c.state, ev)
	if !ok {
		return false
	}
	if next != c.state {
		c.log.Debugw("ws_state", "from", c.state.String(), "to", next.String(), "event", ev.String())
	}
	c.state = next
	return true
}
