package search

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	values []string
	fired  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestRapidTriggersFireOnceWithLastValue(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(50*time.Millisecond, rec.record)

	d.Trigger("a")
	d.Trigger("ab")
	d.Trigger("abc")

	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
	// Allow any spurious extra fire a moment to land.
	time.Sleep(100 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one fire, got %v", got)
	}
	if got[0] != "abc" {
		t.Fatalf("expected last value abc, got %s", got[0])
	}
}

func TestSpacedTriggersEachFire(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(20*time.Millisecond, rec.record)

	for _, v := range []string{"a", "b"} {
		d.Trigger(v)
		select {
		case <-rec.fired:
		case <-time.After(time.Second):
			t.Fatalf("debouncer never fired for %s", v)
		}
	}

	got := rec.snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected both spaced triggers to fire, got %v", got)
	}
}

func TestCancelSuppressesPendingFire(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(50*time.Millisecond, rec.record)

	d.Trigger("doomed")
	d.Cancel()

	select {
	case <-rec.fired:
		t.Fatal("cancelled trigger still fired")
	case <-time.After(150 * time.Millisecond):
	}
}
