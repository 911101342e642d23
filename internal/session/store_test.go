package session

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(zap.NewNop())
}

func TestCreateIsIdempotentPerCall(t *testing.T) {
	store := newTestStore()

	a := store.Create("call-1")
	b := store.Create("call-1")

	if a.ID != b.ID {
		t.Fatalf("same call produced two sessions: %s vs %s", a.ID, b.ID)
	}
	if a.Status != StatusInitializing || a.CallState != StateOnboarding {
		t.Errorf("unexpected initial state: %s / %s", a.Status, a.CallState)
	}
}

func TestUpdateReturnsSnapshot(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")

	snap, ok := store.Update(s.ID, func(s *Session) {
		s.Status = StatusCounseling
	})
	if !ok {
		t.Fatal("Update: session not found")
	}

	// Mutating the snapshot must not leak into the store
	snap.Status = StatusError
	got, _ := store.Get(s.ID)
	if got.Status != StatusCounseling {
		t.Errorf("status = %s, want counseling", got.Status)
	}
}

func TestFirstMatchWinsCapture(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")

	store.Update(s.ID, func(s *Session) {
		s.SetUserName("Alice")
		s.SetUserName("Bob")
		s.SetProblemDescription("I procrastinate on everything important")
		s.SetProblemDescription("something else entirely")
	})

	got, _ := store.Get(s.ID)
	if got.UserName != "Alice" {
		t.Errorf("user name = %q, want Alice", got.UserName)
	}
	if got.ProblemDescription != "I procrastinate on everything important" {
		t.Errorf("problem description overwritten: %q", got.ProblemDescription)
	}
}

func TestTranscriptDeduplication(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")
	now := time.Now()

	store.Update(s.ID, func(s *Session) {
		s.AppendTranscript("user", "hello", now)
		s.AppendTranscript("user", "hello", now.Add(time.Second))
		s.AppendTranscript("assistant", "hello", now)
		s.AppendTranscript("user", "bye", now)
	})

	got, _ := store.Get(s.ID)
	if len(got.Transcript) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(got.Transcript))
	}
}

func TestDeleteCancelsTimers(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")

	fired := make(chan struct{}, 1)
	store.SetTimer(s.ID, "fallback", 30*time.Millisecond, func() {
		fired <- struct{}{}
	})
	store.Delete(s.ID)

	select {
	case <-fired:
		t.Fatal("timer fired after session teardown")
	case <-time.After(80 * time.Millisecond):
	}

	if _, ok := store.Get(s.ID); ok {
		t.Error("session still present after Delete")
	}
}

func TestSetTimerReplacesByName(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")

	var mu sync.Mutex
	count := 0
	bump := func() {
		mu.Lock()
		count++
		mu.Unlock()
	}

	store.SetTimer(s.ID, "poll", 20*time.Millisecond, bump)
	store.SetTimer(s.ID, "poll", 20*time.Millisecond, bump)

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("timer fired %d times, want 1", count)
	}
}

func TestConcurrentUpdatesDoNotRace(t *testing.T) {
	store := newTestStore()
	s := store.Create("call-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update(s.ID, func(s *Session) {
				s.AppendTranscript("user", "line", time.Now())
			})
		}(i)
	}
	wg.Wait()

	got, _ := store.Get(s.ID)
	if len(got.Transcript) != 1 {
		t.Errorf("dedupe under concurrency: got %d entries, want 1", len(got.Transcript))
	}
}
