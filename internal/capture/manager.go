package capture

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager tracks one Consumer per active call. Attach is idempotent per call
// id: the platform can redeliver call-start events and only the first one may
// open a feed connection.
type Manager struct {
	mu        sync.Mutex
	consumers map[string]*Consumer
	cfg       Config
	logger    *zap.Logger
}

func NewManager(cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		consumers: make(map[string]*Consumer),
		cfg:       cfg,
		logger:    logger,
	}
}

// Attach opens a capture session on the call's monitor feed. A second Attach
// for the same call is a no-op.
func (m *Manager) Attach(callID, feedURL string, onSample SampleFunc) error {
	if callID == "" || feedURL == "" {
		return fmt.Errorf("call id and feed url are required")
	}

	m.mu.Lock()
	if _, ok := m.consumers[callID]; ok {
		m.mu.Unlock()
		m.logger.Debug("Capture already attached", zap.String("call_id", callID))
		return nil
	}
	c := NewConsumer(callID, m.cfg, onSample, m.logger)
	m.consumers[callID] = c
	m.mu.Unlock()

	if err := c.Connect(feedURL); err != nil {
		m.mu.Lock()
		delete(m.consumers, callID)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Detach closes and forgets the call's capture session.
func (m *Manager) Detach(callID string) {
	m.mu.Lock()
	c, ok := m.consumers[callID]
	delete(m.consumers, callID)
	m.mu.Unlock()
	if ok {
		c.Disconnect()
	}
}

// Get returns the live consumer for a call, if any.
func (m *Manager) Get(callID string) (*Consumer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consumers[callID]
	return c, ok
}

// TriggerNow forces sample extraction on the call's consumer.
func (m *Manager) TriggerNow(callID string) error {
	c, ok := m.Get(callID)
	if !ok {
		return fmt.Errorf("no capture session for call %s", callID)
	}
	return c.TriggerNow()
}

// Active returns the number of live capture sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.consumers)
}
