package clone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/elevenlabs"
)

type fakeProvider struct {
	mu        sync.Mutex
	available bool
	results   []cloneResult
	calls     int
}

type cloneResult struct {
	voiceID string
	err     error
}

func (f *fakeProvider) IsAvailable() bool { return f.available }

func (f *fakeProvider) CloneVoice(ctx context.Context, req *elevenlabs.CloneRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return "", errors.New("unexpected extra call")
	}
	r := f.results[f.calls]
	f.calls++
	return r.voiceID, r.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeArchiver struct {
	mu    sync.Mutex
	saves int
	fail  bool
}

func (f *fakeArchiver) SaveSample(callID string, wav []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.fail {
		return "", errors.New("disk full")
	}
	return "/tmp/" + callID + ".wav", nil
}

func testSample(seconds int) capture.Sample {
	return capture.Sample{
		CallID:     "call-1",
		PCM:        make([]byte, seconds*16000*2),
		SampleRate: 16000,
	}
}

func newTestDispatcher(t *testing.T, p Provider, a Archiver) (*Dispatcher, session.Store, string) {
	t.Helper()
	store := session.NewMemoryStore(zap.NewNop())
	s := store.Create("call-1")
	store.Update(s.ID, func(sess *session.Session) {
		sess.UserName = "Amira"
	})
	return NewDispatcher(p, store, a, 3, zap.NewNop()), store, s.ID
}

func TestDispatchSuccessStoresVoiceID(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{{voiceID: "v-1"}}}
	archiver := &fakeArchiver{}
	d, store, id := newTestDispatcher(t, provider, archiver)

	ready := make(chan string, 1)
	d.OnCloneReady = func(sessionID string) { ready <- sessionID }

	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	s, _ := store.Get(id)
	if !s.CloneReady || s.VoiceID != "v-1" {
		t.Errorf("session = ready:%v voice:%q, want ready with v-1", s.CloneReady, s.VoiceID)
	}
	if s.CloneInFlight {
		t.Error("CloneInFlight still set after completion")
	}
	if archiver.saves != 1 {
		t.Errorf("archive saves = %d, want 1", archiver.saves)
	}

	select {
	case got := <-ready:
		if got != id {
			t.Errorf("OnCloneReady session = %s, want %s", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("OnCloneReady never fired")
	}
}

func TestDispatchRejectsShortSample(t *testing.T) {
	provider := &fakeProvider{available: true}
	d, _, id := newTestDispatcher(t, provider, nil)

	err := d.Dispatch(context.Background(), id, capture.Sample{
		CallID:     "call-1",
		PCM:        make([]byte, 100),
		SampleRate: 16000,
	})

	var insufficient *InsufficientAudioError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientAudioError", err)
	}
	if provider.callCount() != 0 {
		t.Error("short sample reached the provider")
	}
}

func TestDispatchRetriesTransientThenSucceeds(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{
		{err: &elevenlabs.TransientError{Status: 503}},
		{voiceID: "v-2"},
	}}
	d, store, id := newTestDispatcher(t, provider, nil)

	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if provider.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.callCount())
	}
	s, _ := store.Get(id)
	if s.VoiceID != "v-2" {
		t.Errorf("voice id = %q, want v-2", s.VoiceID)
	}
}

func TestDispatchRejectedIsTerminal(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{
		{err: &elevenlabs.RejectedError{Status: 400, Body: "bad audio"}},
	}}
	d, store, id := newTestDispatcher(t, provider, nil)

	err := d.Dispatch(context.Background(), id, testSample(2))
	if !elevenlabs.IsRejected(err) {
		t.Fatalf("err = %v, want rejection", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, rejection must not retry", provider.callCount())
	}
	s, _ := store.Get(id)
	if s.CloneReady || s.CloneInFlight {
		t.Error("rejected session left marked ready or in flight")
	}
}

func TestDispatchAmbiguousTimeoutLeavesSessionPending(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{
		{err: &elevenlabs.AmbiguousTimeoutError{Err: errors.New("EOF")}},
	}}
	d, store, id := newTestDispatcher(t, provider, nil)

	err := d.Dispatch(context.Background(), id, testSample(2))
	if !elevenlabs.IsAmbiguousTimeout(err) {
		t.Fatalf("err = %v, want ambiguous timeout", err)
	}

	s, _ := store.Get(id)
	if s.CloneReady {
		t.Error("ambiguous timeout marked clone ready")
	}
	if !s.CloneInFlight {
		t.Error("latch released after ambiguous timeout; a resubmission could duplicate the clone")
	}

	// Second dispatch must be a no-op, not a resubmission.
	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.callCount())
	}
}

func TestDispatchLatchSkipsSecondAttempt(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{{voiceID: "v-1"}}}
	d, _, id := newTestDispatcher(t, provider, nil)

	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.callCount())
	}
}

func TestDispatchArchiveFailureDoesNotBlockClone(t *testing.T) {
	provider := &fakeProvider{available: true, results: []cloneResult{{voiceID: "v-1"}}}
	archiver := &fakeArchiver{fail: true}
	d, store, id := newTestDispatcher(t, provider, archiver)

	if err := d.Dispatch(context.Background(), id, testSample(2)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	s, _ := store.Get(id)
	if s.VoiceID != "v-1" {
		t.Error("archive failure blocked the clone")
	}
}

func TestDispatchUnknownSession(t *testing.T) {
	provider := &fakeProvider{available: true}
	d := NewDispatcher(provider, session.NewMemoryStore(zap.NewNop()), nil, 3, zap.NewNop())

	if err := d.Dispatch(context.Background(), "nope", testSample(2)); err == nil {
		t.Fatal("want error for unknown session")
	}
}
