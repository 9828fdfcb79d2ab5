package logstream

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Connect and Send after Close.
	ErrClosed = errors.New("log stream client closed")
	// ErrNotOpen is returned by Send when no connection is open.
	ErrNotOpen = errors.New("log stream not open")
	// ErrRetriesExhausted is returned by Reconnector.Run when the attempt
	// budget is spent.
	ErrRetriesExhausted = errors.New("log stream reconnect attempts exhausted")
)

// TransportError reports a failed dial, read or write on the stream.
type TransportError struct {
	Op     string // dial, read, write
	Addr   string
	ConnID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("log stream %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
