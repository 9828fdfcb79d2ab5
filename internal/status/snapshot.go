package status

import (
	"time"

	"github.com/codeflow/panel/internal/document"
)

// Snapshot is one captured status document. It is immutable: the document is
// copied in on construction and copied out by Values.
type Snapshot struct {
	values     document.Document
	capturedAt time.Time
}

// NewSnapshot captures doc at the given time.
func NewSnapshot(doc document.Document, capturedAt time.Time) *Snapshot {
	values := doc.Clone()
	if values == nil {
		values = document.New()
	}
	return &Snapshot{values: values, capturedAt: capturedAt}
}

// CapturedAt returns when the snapshot was taken.
func (s *Snapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// Values returns a copy of the captured document.
func (s *Snapshot) Values() document.Document {
	return s.values.Clone()
}

// Lookup returns a copy of the value at path.
func (s *Snapshot) Lookup(path ...string) (any, bool) {
	v, ok := s.values.Lookup(path...)
	if !ok {
		return nil, false
	}
	return document.Clone(v), true
}

// State is the poller's observable state.
type State struct {
	// Snapshot is the last successful poll; nil until one succeeds. A failed
	// poll keeps the previous snapshot on display.
	Snapshot            *Snapshot
	LastUpdated         time.Time
	Err                 error // *FetchError from the latest poll, nil after a success
	ConsecutiveFailures int
	Fetching            bool
}

// HasSnapshot reports whether any poll has succeeded.
func (s State) HasSnapshot() bool {
	return s.Snapshot != nil
}

// IsOffline returns true when the engine has been unreachable for multiple polls.
func (s State) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}
