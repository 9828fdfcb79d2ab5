package configsync

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Controller.
	ErrClosed = errors.New("config controller closed")
	// ErrConflict means the remote document changed since it was last
	// loaded or saved.
	ErrConflict = errors.New("remote document changed")
)

// LoadError reports a failed read or decode. The controller keeps its
// previous documents.
type LoadError struct {
	Op  string // read, decode
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config (%s): %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SaveError reports a failed save. The working document and the dirty flag
// are kept so the save can be retried.
type SaveError struct {
	Op  string // encode, check, write
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save config (%s): %v", e.Op, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
