package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codeflow/panel/internal/document"
)

type result struct {
	doc document.Document
	err error
}

// scriptedFetcher returns queued results in order; once the queue is empty
// it repeats the last one. When gate is non-nil every fetch waits on it.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []result
	last    result
	calls   int
	gate    chan struct{}
	started chan struct{}
}

func (f *scriptedFetcher) FetchStatus(ctx context.Context) (document.Document, error) {
	f.mu.Lock()
	f.calls++
	res := f.last
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
		f.last = res
	}
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return res.doc, res.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) push(r result) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func waitState(t *testing.T, p *Poller, cond func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		changed := p.Changed()
		st := p.State()
		if cond(st) {
			return st
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("condition not reached; last state %+v", st)
		}
	}
}

func TestPoller_FailuresKeepLastSnapshot(t *testing.T) {
	f := &scriptedFetcher{results: []result{{doc: document.Document{"engine": "running", "actions": 4}}}}
	p := New(Options{Fetcher: f})
	defer p.Stop()

	if err := p.Start(5000 * time.Millisecond); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	// Joins the initial fetch or issues a second successful one.
	first, err := p.Refresh(context.Background())
	if err != nil || !first.HasSnapshot() {
		t.Fatalf("initial Refresh = %+v, %v; want snapshot", first, err)
	}

	boom := errors.New("connection refused")
	for i := 1; i <= 3; i++ {
		f.push(result{err: boom})
		st, err := p.Refresh(context.Background())
		var ferr *FetchError
		if !errors.As(err, &ferr) || !errors.Is(err, boom) {
			t.Fatalf("Refresh #%d error = %v, want FetchError wrapping boom", i, err)
		}
		if st.Snapshot != first.Snapshot {
			t.Fatalf("Refresh #%d replaced snapshot on failure", i)
		}
		if st.Err == nil || st.ConsecutiveFailures != i {
			t.Fatalf("Refresh #%d state = %+v, want error and %d failures", i, st, i)
		}
	}
	if !p.State().IsOffline() {
		t.Fatalf("IsOffline() = false after 3 failures")
	}

	f.push(result{doc: document.Document{"engine": "stopped"}})
	st, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error after recovery: %v", err)
	}
	if st.Err != nil || st.ConsecutiveFailures != 0 {
		t.Fatalf("state after recovery = %+v, want cleared error", st)
	}
	if v, _ := st.Snapshot.Lookup("engine"); v != "stopped" {
		t.Fatalf("snapshot engine = %v, want stopped", v)
	}
	if st.Snapshot == first.Snapshot {
		t.Fatalf("snapshot not superseded")
	}
	if v, _ := first.Snapshot.Lookup("engine"); v != "running" {
		t.Fatalf("old snapshot mutated: engine = %v", v)
	}
}

func TestPoller_RefreshSharesInFlightFetch(t *testing.T) {
	f := &scriptedFetcher{
		results: []result{{doc: document.Document{"engine": "running"}}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	p := New(Options{Fetcher: f})
	defer p.Stop()

	if err := p.Start(time.Hour); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	<-f.started // scheduled fetch is in flight

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Refresh(context.Background())
		}(i)
	}
	// Give both refreshes time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Refresh %d returned error: %v", i, err)
		}
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
	if !p.State().HasSnapshot() {
		t.Fatalf("shared result not applied")
	}
}

func TestPoller_TicksOnInterval(t *testing.T) {
	f := &scriptedFetcher{results: []result{{doc: document.Document{}}}}
	p := New(Options{Fetcher: f})
	defer p.Stop()

	if err := p.Start(5 * time.Millisecond); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.callCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("fetch calls = %d after 2s, want >= 3", f.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoller_CompletionAfterStopIsDiscarded(t *testing.T) {
	f := &scriptedFetcher{
		results: []result{{doc: document.Document{"engine": "running"}}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := New(Options{Fetcher: f})

	done := make(chan error, 1)
	go func() {
		_, err := p.Refresh(context.Background())
		done <- err
	}()
	<-f.started

	p.Stop()
	p.Stop() // idempotent
	close(f.gate)

	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Fatalf("Refresh = %v, want ErrStopped", err)
	}
	st := p.State()
	if st.HasSnapshot() || st.Fetching {
		t.Fatalf("state mutated after Stop: %+v", st)
	}
}

func TestPoller_StoppedRejectsStartAndRefresh(t *testing.T) {
	f := &scriptedFetcher{}
	p := New(Options{Fetcher: f})
	p.Stop()

	if err := p.Start(time.Second); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start after Stop = %v, want ErrStopped", err)
	}
	if _, err := p.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Refresh after Stop = %v, want ErrStopped", err)
	}
	if got := f.callCount(); got != 0 {
		t.Fatalf("fetch calls = %d, want 0", got)
	}
}

func TestPoller_RefreshHonoursCallerContext(t *testing.T) {
	f := &scriptedFetcher{
		results: []result{{doc: document.Document{}}},
		gate:    make(chan struct{}),
	}
	p := New(Options{Fetcher: f})
	defer func() {
		close(f.gate)
		p.Stop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Refresh = %v, want deadline exceeded", err)
	}
}

func TestSnapshot_IsImmutable(t *testing.T) {
	src := document.Document{"workflow_engine": map[string]any{"status": "active"}}
	snap := NewSnapshot(src, time.Unix(100, 0))

	src["workflow_engine"].(map[string]any)["status"] = "mutated"
	if v, _ := snap.Lookup("workflow_engine", "status"); v != "active" {
		t.Fatalf("snapshot shares storage with source: %v", v)
	}

	vals := snap.Values()
	vals["engine"] = "x"
	if _, ok := snap.Lookup("engine"); ok {
		t.Fatalf("Values() exposed internal storage")
	}
	if !snap.CapturedAt().Equal(time.Unix(100, 0)) {
		t.Fatalf("CapturedAt = %v", snap.CapturedAt())
	}
}
