package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phistack/phistack/pkg/tracker"
)

func run(id string) *tracker.Run {
	return &tracker.Run{ID: id, Aggregate: tracker.Aggregate{State: tracker.StateHealthy}}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(run("run-1"))

	e, ok := st.Get("run-1")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Run.ID != "run-1" {
		t.Errorf("ID: got %q, want run-1", e.Run.ID)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(5 * time.Minute)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestGet_StaleIsMissing(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(run("old"))

	st.now = fixedClock(base)
	if _, ok := st.Get("old"); ok {
		t.Fatal("Get on stale entry: expected false, got true")
	}
}

func TestList_NewestFirstExcludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put(run("old"))
	st.now = fixedClock(base.Add(-2 * time.Minute))
	st.Put(run("mid"))
	st.now = fixedClock(base)
	st.Put(run("new"))

	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Run.ID != "new" || entries[1].Run.ID != "mid" {
		t.Errorf("List order: got %q, %q; want new, mid", entries[0].Run.ID, entries[1].Run.ID)
	}

	latest, ok := st.Latest()
	if !ok || latest.Run.ID != "new" {
		t.Errorf("Latest: got %v, %v; want new", latest, ok)
	}
}

func TestLatest_Empty(t *testing.T) {
	if _, ok := New(time.Minute).Latest(); ok {
		t.Fatal("Latest on empty store: expected false")
	}
}

func TestCount_IncludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(run("old"))
	st.now = fixedClock(base)
	st.Put(run("new"))

	if n := st.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(run("old1"))
	st.Put(run("old2"))
	st.now = fixedClock(base)
	st.Put(run("live"))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(5 * time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			st.Put(run(fmt.Sprintf("run-%d", n%5)))
		}(i)
		go func() {
			defer wg.Done()
			st.List()
		}()
	}
	wg.Wait()

	if st.Count() != 5 {
		t.Errorf("Count after concurrent puts: got %d, want 5", st.Count())
	}
}
