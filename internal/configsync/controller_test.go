package configsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeflow/panel/internal/docstore"
	"github.com/codeflow/panel/internal/document"
)

// memSource is an in-memory Source. readErr/writeErr fail the next call
// only. With writeGate set, Write blocks until the gate is closed.
type memSource struct {
	mu        sync.Mutex
	data      []byte
	reads     int
	writes    int
	readErr   error
	writeErr  error
	readGate  chan struct{}
	writeGate chan struct{}
	started   chan struct{}
}

func (s *memSource) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	s.reads++
	err := s.readErr
	s.readErr = nil
	gate := s.readGate
	data := append([]byte(nil), s.data...)
	s.mu.Unlock()

	if gate != nil {
		s.signalStarted()
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *memSource) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.writes++
	err := s.writeErr
	s.writeErr = nil
	gate := s.writeGate
	s.mu.Unlock()

	if gate != nil {
		s.signalStarted()
		<-gate
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *memSource) signalStarted() {
	if s.started != nil {
		s.started <- struct{}{}
	}
}

func (s *memSource) set(data string) {
	s.mu.Lock()
	s.data = []byte(data)
	s.mu.Unlock()
}

func (s *memSource) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newController(t *testing.T, src *memSource, conflictCheck bool) *Controller {
	t.Helper()
	c := New(Options{Source: src, Codec: docstore.YAML{}, ConflictCheck: conflictCheck})
	t.Cleanup(c.Close)
	return c
}

func TestController_RetriesScenario(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.IsDirty() {
		t.Fatalf("dirty after load")
	}

	if err := c.Edit(document.Document{"retries": 5}); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if !c.IsDirty() || !c.NeedsConfirmation() {
		t.Fatalf("not dirty after edit")
	}

	boom := errors.New("network down")
	src.writeErr = boom
	err := c.Save(context.Background())
	var serr *SaveError
	if !errors.As(err, &serr) || !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want SaveError wrapping network error", err)
	}
	if v, _ := c.Working().Lookup("retries"); !document.Equal(v, 5) {
		t.Fatalf("working retries = %v after failed save, want 5", v)
	}
	st := c.State()
	if !st.Dirty || st.Saving || !errors.As(st.Err, &serr) {
		t.Fatalf("state after failed save = %+v", st)
	}

	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("retried Save returned error: %v", err)
	}
	if v, _ := c.Baseline().Lookup("retries"); !document.Equal(v, 5) {
		t.Fatalf("baseline retries = %v, want 5", v)
	}
	st = c.State()
	if st.Dirty || st.Err != nil || st.LastSaved.IsZero() {
		t.Fatalf("state after save = %+v", st)
	}
	if string(src.data) != "retries: 5\n" {
		t.Fatalf("stored data = %q", src.data)
	}
}

func TestController_OverlappingSavesWriteOnce(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})

	src.writeGate = make(chan struct{})
	src.started = make(chan struct{}, 2)

	errs := make(chan error, 2)
	go func() { errs <- c.Save(context.Background()) }()
	<-src.started // first write in flight
	if !c.State().Saving {
		t.Fatalf("Saving = false while write in flight")
	}
	go func() { errs <- c.Save(context.Background()) }()
	// Let the second call join the in-flight save.
	time.Sleep(50 * time.Millisecond)
	close(src.writeGate)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}
	if got := src.writeCount(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}
}

func TestController_EditDuringSaveStaysDirty(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})

	src.writeGate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-src.started

	_ = c.Edit(document.Document{"timeout": "30s"})
	close(src.writeGate)
	if err := <-done; err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, ok := c.Baseline().Lookup("timeout"); ok {
		t.Fatalf("edit made during save reached the baseline")
	}
	if v, _ := c.Working().Lookup("timeout"); v != "30s" {
		t.Fatalf("edit made during save lost: %v", v)
	}
	if !c.IsDirty() {
		t.Fatalf("dirty = false, want pending edit")
	}

	src.writeGate = nil
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}
	if c.IsDirty() || src.writeCount() != 2 {
		t.Fatalf("dirty = %v writes = %d after second save", c.IsDirty(), src.writeCount())
	}
}

func TestController_LoadDuringSaveSeesSavedDocument(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})

	src.writeGate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	saved := make(chan error, 1)
	go func() { saved <- c.Save(context.Background()) }()
	<-src.started

	loaded := make(chan error, 1)
	go func() { loaded <- c.Load(context.Background()) }()
	// Give the load time to reach the source if it were not waiting.
	time.Sleep(50 * time.Millisecond)
	close(src.writeGate)

	if err := <-saved; err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := <-loaded; err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if string(src.data) != "retries: 5\n" {
		t.Fatalf("stored data = %q", src.data)
	}
	for name, doc := range map[string]document.Document{"baseline": c.Baseline(), "working": c.Working()} {
		if v, _ := doc.Lookup("retries"); !document.Equal(v, 5) {
			t.Fatalf("%s retries = %v, want 5", name, v)
		}
	}
	if c.IsDirty() {
		t.Fatalf("dirty after save and load agree with the source")
	}
}

func TestController_SaveCleanIsNoop(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	// An edit that sets the loaded value again is not a change.
	_ = c.Edit(document.Document{"retries": 3.0})
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if got := src.writeCount(); got != 0 {
		t.Fatalf("writes = %d, want 0", got)
	}
}

func TestController_ResetRestoresBaseline(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\nengine:\n  mode: fast\n  workers: 2\n")}
	c := newController(t, src, false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	baseline := c.Baseline()

	edits := []document.Document{
		{"retries": 5},
		{"engine": map[string]any{"mode": "slow"}},
		{"engine": map[string]any{"workers": nil}},
		{"extra": []any{1, 2, 3}},
		{"retries": nil},
	}
	for i, e := range edits {
		_ = c.Edit(e)
		if i == 2 {
			_ = c.Replace(document.Document{"replaced": true})
		}
	}
	if !c.IsDirty() {
		t.Fatalf("not dirty after edits")
	}

	c.Reset()
	if c.IsDirty() {
		t.Fatalf("dirty after Reset")
	}
	if !document.Equal(c.Working(), baseline) {
		t.Fatalf("working = %v, want %v", c.Working(), baseline)
	}
}

func TestController_LoadFailureKeepsDocuments(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, false)

	// First load fails: documents stay empty.
	src.readErr = errors.New("permission denied")
	err := c.Load(context.Background())
	var lerr *LoadError
	if !errors.As(err, &lerr) || lerr.Op != "read" {
		t.Fatalf("Load error = %v, want read LoadError", err)
	}
	if len(c.Baseline()) != 0 || len(c.Working()) != 0 || c.State().Loaded {
		t.Fatalf("documents changed by failed first load")
	}

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 7})

	src.set("retries: [unterminated\n")
	err = c.Load(context.Background())
	if !errors.As(err, &lerr) || lerr.Op != "decode" {
		t.Fatalf("Load error = %v, want decode LoadError", err)
	}
	if v, _ := c.Baseline().Lookup("retries"); !document.Equal(v, 3) {
		t.Fatalf("baseline retries = %v, want 3", v)
	}
	if v, _ := c.Working().Lookup("retries"); !document.Equal(v, 7) {
		t.Fatalf("working retries = %v, want 7", v)
	}
	if st := c.State(); st.Loading || st.Err == nil {
		t.Fatalf("state after failed load = %+v", st)
	}
}

func TestController_EditDuringLoadIsReplayed(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\nmode: fast\n")}
	c := newController(t, src, false)

	src.readGate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-src.started

	_ = c.Edit(document.Document{"retries": 9})
	close(src.readGate)
	if err := <-done; err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	w := c.Working()
	if v, _ := w.Lookup("retries"); !document.Equal(v, 9) {
		t.Fatalf("working retries = %v, want replayed 9", v)
	}
	if v, _ := w.Lookup("mode"); v != "fast" {
		t.Fatalf("working mode = %v, want loaded value", v)
	}
	if v, _ := c.Baseline().Lookup("retries"); !document.Equal(v, 3) {
		t.Fatalf("baseline retries = %v, want 3", v)
	}
	if !c.IsDirty() {
		t.Fatalf("dirty = false after replayed edit")
	}
}

func TestController_ConflictCheck(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := newController(t, src, true)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})

	src.set("retries: 4\n") // changed behind our back
	err := c.Save(context.Background())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Save = %v, want ErrConflict", err)
	}
	if src.writeCount() != 0 || !c.IsDirty() {
		t.Fatalf("conflicting save wrote or cleared dirty")
	}

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save after reload returned error: %v", err)
	}
	// Our own write does not count as a remote change.
	_ = c.Edit(document.Document{"retries": 6})
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save after own write returned error: %v", err)
	}
}

func TestController_ClosedRejectsOperations(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := New(Options{Source: src, Codec: docstore.YAML{}})
	c.Close()
	c.Close()

	if err := c.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Load after Close = %v", err)
	}
	if err := c.Edit(document.Document{"a": 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Edit after Close = %v", err)
	}
	if err := c.Save(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Save after Close = %v", err)
	}
	c.Reset()
}

func TestController_SaveCompletingAfterCloseIsDiscarded(t *testing.T) {
	src := &memSource{data: []byte("retries: 3\n")}
	c := New(Options{Source: src, Codec: docstore.YAML{}})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	_ = c.Edit(document.Document{"retries": 5})

	src.writeGate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-src.started

	c.Close()
	close(src.writeGate)
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("Save = %v, want ErrClosed", err)
	}
	if v, _ := c.Baseline().Lookup("retries"); !document.Equal(v, 3) {
		t.Fatalf("baseline changed after Close: %v", v)
	}
}
