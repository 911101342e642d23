// Package clone submits captured voice samples to the cloning provider and
// records the outcome on the session.
package clone

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/audio"
	"github.com/mirrorline/futureself/pkg/elevenlabs"
)

// InsufficientAudioError is returned when a sample is too short to submit.
// Rejecting locally beats sending a request the provider is guaranteed to
// refuse.
type InsufficientAudioError struct {
	Bytes    int
	MinBytes int
}

func (e *InsufficientAudioError) Error() string {
	return fmt.Sprintf("clone sample too small: %d bytes, need at least %d", e.Bytes, e.MinBytes)
}

// minSampleSeconds of mono 16-bit audio must be present before submission.
const minSampleSeconds = 1

// Provider is the slice of the cloning API the dispatcher needs.
type Provider interface {
	IsAvailable() bool
	CloneVoice(ctx context.Context, req *elevenlabs.CloneRequest) (string, error)
}

// Archiver persists the submitted sample for later inspection or replay.
type Archiver interface {
	SaveSample(callID string, wav []byte) (string, error)
}

// Dispatcher packages a capture sample as WAV, submits it, and writes the
// provider voice id back into the session. One submission per session: the
// latch lives on the session record (CloneInFlight / CloneReady), so a second
// Dispatch while the first is pending is a no-op.
type Dispatcher struct {
	provider    Provider
	store       session.Store
	archiver    Archiver
	maxAttempts int
	logger      *zap.Logger

	// OnCloneReady is invoked (on its own goroutine) after a voice id has
	// been stored. The scheduler uses it to race persona creation against
	// its fallback timer.
	OnCloneReady func(sessionID string)
}

func NewDispatcher(provider Provider, store session.Store, archiver Archiver, maxAttempts int, logger *zap.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		provider:    provider,
		store:       store,
		archiver:    archiver,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Dispatch validates and submits one capture sample. Terminal provider
// rejections are returned to the caller; an ambiguous timeout leaves the
// session pending (not failed) and must not trigger a resubmission.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, sample capture.Sample) error {
	minBytes := sample.SampleRate * 2 * minSampleSeconds
	if len(sample.PCM) < minBytes {
		return &InsufficientAudioError{Bytes: len(sample.PCM), MinBytes: minBytes}
	}

	if !d.provider.IsAvailable() {
		return fmt.Errorf("cloning provider not configured")
	}

	// Single-attempt latch, claimed atomically on the session record.
	var claimed bool
	var displayName string
	_, ok := d.store.Update(sessionID, func(s *session.Session) {
		if s.CloneInFlight || s.CloneReady {
			return
		}
		s.CloneInFlight = true
		claimed = true
		displayName = s.UserName
	})
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if !claimed {
		d.logger.Info("Clone dispatch skipped: already in flight or done",
			zap.String("session_id", sessionID),
		)
		return nil
	}

	if displayName == "" {
		displayName = "Caller"
	}

	wav := audio.EncodeWAV(sample.PCM, sample.SampleRate)

	if d.archiver != nil {
		if path, err := d.archiver.SaveSample(sample.CallID, wav); err != nil {
			d.logger.Warn("Failed to archive clone sample", zap.Error(err))
		} else if path != "" {
			d.logger.Debug("Clone sample archived", zap.String("path", path))
		}
	}

	voiceID, err := d.submitWithRetry(ctx, sessionID, &elevenlabs.CloneRequest{
		Name:        fmt.Sprintf("Future %s", displayName),
		Description: fmt.Sprintf("Cloned from call %s", sample.CallID),
		WAVData:     wav,
	})
	if err != nil {
		if elevenlabs.IsAmbiguousTimeout(err) {
			// The provider may have finished the clone upstream. Leave the
			// session pending so status queries report clone-not-ready, and
			// keep the latch set so nothing resubmits the sample.
			d.logger.Warn("Clone submission timed out without a response; leaving session pending",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			return err
		}
		d.store.Update(sessionID, func(s *session.Session) {
			s.CloneInFlight = false
		})
		return err
	}

	d.store.Update(sessionID, func(s *session.Session) {
		s.CloneInFlight = false
		s.CloneReady = true
		s.VoiceID = voiceID
	})

	d.logger.Info("Voice clone completed",
		zap.String("session_id", sessionID),
		zap.String("voice_id", voiceID),
	)

	if d.OnCloneReady != nil {
		go d.OnCloneReady(sessionID)
	}
	return nil
}

// submitWithRetry retries transient provider errors with doubling backoff.
// Rejections and ambiguous timeouts are returned immediately.
func (d *Dispatcher) submitWithRetry(ctx context.Context, sessionID string, req *elevenlabs.CloneRequest) (string, error) {
	delay := time.Second
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		voiceID, err := d.provider.CloneVoice(ctx, req)
		if err == nil {
			return voiceID, nil
		}
		lastErr = err

		if !elevenlabs.IsTransient(err) {
			return "", err
		}

		d.logger.Warn("Transient clone error",
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}

	return "", fmt.Errorf("clone failed after %d attempts: %w", d.maxAttempts, lastErr)
}
