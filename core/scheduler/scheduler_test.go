package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeEvictor struct {
	calls atomic.Int32
	ttl   atomic.Int64
	n     int
}

func (f *fakeEvictor) Evict(ttl time.Duration) int {
	f.calls.Add(1)
	f.ttl.Store(int64(ttl))
	return f.n
}

func TestSweep(t *testing.T) {
	ev := &fakeEvictor{n: 2}
	if got := Sweep(ev, time.Hour); got != 2 {
		t.Fatalf("evicted = %d, want 2", got)
	}
	if time.Duration(ev.ttl.Load()) != time.Hour {
		t.Fatalf("ttl = %v, want 1h", time.Duration(ev.ttl.Load()))
	}
}

func TestSessionSweepValidation(t *testing.T) {
	s := New()
	if err := s.SessionSweep(nil, time.Hour, time.Minute); err == nil {
		t.Fatal("expected error for nil evictor")
	}
	if err := s.SessionSweep(&fakeEvictor{}, 0, time.Minute); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if err := s.SessionSweep(&fakeEvictor{}, time.Hour, 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestSessionSweepRunsOnStart(t *testing.T) {
	ev := &fakeEvictor{}
	s := New()
	if err := s.SessionSweep(ev, time.Hour, time.Hour); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for ev.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not run after start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
