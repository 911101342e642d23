package capture

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/audio"
)

// Config controls one capture session.
type Config struct {
	// TriggerAfter is the call time that must elapse from the first audio
	// frame before the clone sample is extracted.
	TriggerAfter time.Duration
	// RingCapacity bounds the number of buffered chunks.
	RingCapacity int
	// ForcedSampleRate skips inference entirely when > 0.
	ForcedSampleRate int
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// MaxReconnects caps reconnection attempts after abnormal closure.
	MaxReconnects int
}

// Sample is the extracted single-channel clone sample.
type Sample struct {
	CallID     string
	PCM        []byte
	SampleRate int
}

// SampleFunc receives the extracted sample exactly once per capture session.
// It runs on its own goroutine so extraction never blocks the read loop.
type SampleFunc func(Sample)

// streamMetadata is what we look for in text frames. Anything else in the
// frame is logged and ignored.
type streamMetadata struct {
	Type       string `json:"type,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	AltRate    int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Consumer attaches to a call's live monitor feed and decides when enough
// audio has accumulated to extract a clone-worthy sample. Binary frames are
// raw interleaved stereo PCM; text frames are JSON metadata.
type Consumer struct {
	callID   string
	cfg      Config
	onSample SampleFunc
	logger   *zap.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	ring           *Ring
	detector       *rateDetector
	chunkCount     int
	byteCount      int
	firstChunkAt   time.Time
	cloneTriggered bool
	reconnects     int
	closed         bool
}

func NewConsumer(callID string, cfg Config, onSample SampleFunc, logger *zap.Logger) *Consumer {
	if cfg.TriggerAfter <= 0 {
		cfg.TriggerAfter = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	return &Consumer{
		callID:   callID,
		cfg:      cfg,
		onSample: onSample,
		logger:   logger,
		ring:     NewRing(cfg.RingCapacity),
		detector: newRateDetector(cfg.ForcedSampleRate),
	}
}

// Connect dials the monitor feed and starts the read loop. Fails with a
// timeout error when the handshake does not complete in time.
func (c *Consumer) Connect(feedURL string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		ReadBufferSize:   8192,
		WriteBufferSize:  1024,
	}

	conn, resp, err := dialer.Dial(feedURL, http.Header{})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return fmt.Errorf("monitor feed connect failed (status %d): %w", status, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("capture session already closed")
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("Attached to monitor feed",
		zap.String("call_id", c.callID),
		zap.String("feed_url", feedURL),
	)

	go c.readLoop(feedURL)
	return nil
}

func (c *Consumer) readLoop(feedURL string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(feedURL, err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleChunk(message)
		case websocket.TextMessage:
			c.handleMetadata(message)
		}
	}
}

func (c *Consumer) handleReadError(feedURL string, err error) {
	c.mu.Lock()
	closed := c.closed
	c.reconnects++
	attempt := c.reconnects
	c.mu.Unlock()

	if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("Monitor feed closed",
			zap.String("call_id", c.callID),
		)
		return
	}

	if attempt > c.cfg.MaxReconnects {
		c.logger.Error("Monitor feed dropped, reconnect attempts exhausted",
			zap.String("call_id", c.callID),
			zap.Int("attempts", attempt-1),
			zap.Error(err),
		)
		return
	}

	// Exponential backoff, base 1s doubling per attempt, capped at 30s.
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}

	c.logger.Warn("Monitor feed dropped, scheduling reconnect",
		zap.String("call_id", c.callID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	time.AfterFunc(delay, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Connect(feedURL); err != nil {
			c.logger.Error("Monitor feed reconnect failed",
				zap.String("call_id", c.callID),
				zap.Error(err),
			)
		}
	})
}

// handleChunk buffers one binary frame and evaluates the one-shot trigger.
func (c *Consumer) handleChunk(data []byte) {
	var fire bool

	c.mu.Lock()
	c.chunkCount++
	c.byteCount += len(data)
	c.ring.Push(data)

	if c.firstChunkAt.IsZero() {
		c.firstChunkAt = time.Now()
	}

	if rate, ok := c.detector.Observe(len(data)); ok && c.chunkCount == rateMinSamples {
		c.logger.Info("Sample rate determined",
			zap.String("call_id", c.callID),
			zap.Int("sample_rate", rate),
			zap.Int("chunk_size", len(data)),
		)
	}

	// One-shot latch: the elapsed check runs on every frame past the
	// threshold but only the first crossing fires.
	if !c.cloneTriggered && time.Since(c.firstChunkAt) >= c.cfg.TriggerAfter {
		c.cloneTriggered = true
		fire = true
	}
	c.mu.Unlock()

	if fire {
		c.extract()
	}
}

// handleMetadata parses a text frame as JSON. Explicit format info beats the
// chunk-size heuristic; unparsable frames are log-only.
func (c *Consumer) handleMetadata(message []byte) {
	var meta streamMetadata
	if err := json.Unmarshal(message, &meta); err != nil {
		c.logger.Debug("Opaque text frame on monitor feed",
			zap.String("call_id", c.callID),
			zap.String("raw", string(message)),
		)
		return
	}

	rate := meta.SampleRate
	if rate == 0 {
		rate = meta.AltRate
	}
	if rate > 0 {
		c.mu.Lock()
		c.detector.SetExplicit(rate)
		c.mu.Unlock()
		c.logger.Info("Stream announced sample rate",
			zap.String("call_id", c.callID),
			zap.Int("sample_rate", rate),
		)
	}
}

// TriggerNow forces extraction immediately. Exists for short test calls that
// never reach the elapsed-time threshold.
func (c *Consumer) TriggerNow() error {
	c.mu.Lock()
	if c.cloneTriggered {
		c.mu.Unlock()
		return fmt.Errorf("clone already triggered for call %s", c.callID)
	}
	if c.ring.Len() == 0 {
		c.mu.Unlock()
		return fmt.Errorf("no audio buffered for call %s", c.callID)
	}
	c.cloneTriggered = true
	c.mu.Unlock()

	c.extract()
	return nil
}

// extract isolates the caller's channel from the buffered window and hands it
// to the sample callback without blocking the read loop.
func (c *Consumer) extract() {
	c.mu.Lock()
	interleaved := c.ring.Concat()
	rate := c.detector.Rate()
	chunks := c.ring.Len()
	c.mu.Unlock()

	mono := audio.ExtractFirstChannel(interleaved)

	c.logger.Info("Clone sample extracted",
		zap.String("call_id", c.callID),
		zap.Int("chunks", chunks),
		zap.Int("stereo_bytes", len(interleaved)),
		zap.Int("mono_bytes", len(mono)),
		zap.Int("sample_rate", rate),
	)

	sample := Sample{CallID: c.callID, PCM: mono, SampleRate: rate}
	go c.onSample(sample)
}

// Triggered reports whether the one-shot latch has fired.
func (c *Consumer) Triggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneTriggered
}

// Stats returns chunk and byte counters for the status endpoint.
func (c *Consumer) Stats() (chunks, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunkCount, c.byteCount
}

// Disconnect closes the feed with a normal closure code and stops any pending
// reconnect from acting. Idempotent.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	c.logger.Info("Capture session closed", zap.String("call_id", c.callID))
}
