package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store owns all session state. Callers never share live Session pointers:
// reads return snapshots and writes run inside Update under the store lock.
// In-process only; a deployment serves one call at a time, so a shared store
// is deliberately out of scope here. Swap this interface for an external
// implementation before running more than one instance.
type Store interface {
	Create(callID string) *Session
	Get(id string) (*Session, bool)
	GetByCall(callID string) (*Session, bool)
	Update(id string, fn func(*Session)) (*Session, bool)
	UpdateByCall(callID string, fn func(*Session)) (*Session, bool)
	Delete(id string)
	List() []*Session

	// SetTimer schedules deferred work tied to a session. A second timer with
	// the same name replaces (and stops) the first. All timers are cancelled
	// on Delete so stale work never runs against a torn-down session.
	SetTimer(id, name string, d time.Duration, fn func())
	CancelTimer(id, name string)
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byCall map[string]string
	timers map[string]map[string]*time.Timer
	logger *zap.Logger
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byCall: make(map[string]string),
		timers: make(map[string]map[string]*time.Timer),
		logger: logger,
	}
}

func (m *MemoryStore) Create(callID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byCall[callID]; ok {
		return m.byID[id].snapshot()
	}

	s := &Session{
		ID:        uuid.NewString(),
		CallID:    callID,
		Status:    StatusInitializing,
		CallState: StateOnboarding,
		CreatedAt: time.Now(),
	}
	m.byID[s.ID] = s
	m.byCall[callID] = s.ID

	m.logger.Info("Session created",
		zap.String("session_id", s.ID),
		zap.String("call_id", callID),
	)
	return s.snapshot()
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return s.snapshot(), true
}

func (m *MemoryStore) GetByCall(callID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCall[callID]
	if !ok {
		return nil, false
	}
	return m.byID[id].snapshot(), true
}

func (m *MemoryStore) Update(id string, fn func(*Session)) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	fn(s)
	return s.snapshot(), true
}

func (m *MemoryStore) UpdateByCall(callID string, fn func(*Session)) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCall[callID]
	if !ok {
		return nil, false
	}
	s := m.byID[id]
	fn(s)
	return s.snapshot(), true
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return
	}
	for name, t := range m.timers[id] {
		t.Stop()
		m.logger.Debug("Timer cancelled on session teardown",
			zap.String("session_id", id),
			zap.String("timer", name),
		)
	}
	delete(m.timers, id)
	delete(m.byCall, s.CallID)
	delete(m.byID, id)
}

func (m *MemoryStore) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s.snapshot())
	}
	return out
}

func (m *MemoryStore) SetTimer(id, name string, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return
	}
	if existing, ok := m.timers[id][name]; ok {
		existing.Stop()
	}
	if m.timers[id] == nil {
		m.timers[id] = make(map[string]*time.Timer)
	}
	m.timers[id][name] = time.AfterFunc(d, func() {
		m.CancelTimer(id, name)
		fn()
	})
}

func (m *MemoryStore) CancelTimer(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id][name]; ok {
		t.Stop()
		delete(m.timers[id], name)
	}
}
