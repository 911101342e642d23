// Package scheduler drives the call-state machine: it decides when the
// future-self persona gets created and with which voice, racing the clone
// pipeline against a fallback timer so the user always gets a callback.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/persona"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/utils"
	"github.com/mirrorline/futureself/pkg/vapi"
)

// Timer names registered on the session. Teardown cancels all of them.
const (
	timerFallback = "persona-fallback"
	timerPoll     = "clone-poll"
	timerReady    = "ready-transition"
)

// Platform is the slice of the call-platform API the scheduler needs.
type Platform interface {
	IsAvailable() bool
	CreateAssistant(ctx context.Context, req *vapi.AssistantRequest) (string, error)
	CreateCall(ctx context.Context, req *vapi.CallRequest) (string, error)
}

// Config carries the scheduler's timing knobs and fallback voice.
type Config struct {
	// FallbackTimeout bounds how long the scheduler waits for the clone
	// before creating the persona with the default voice.
	FallbackTimeout time.Duration
	// PollInterval / PollCeiling shape the polling path used when the
	// fallback fires while a clone submission is still in flight.
	PollInterval time.Duration
	PollCeiling  time.Duration
	// ReadyDelay separates interruption_delivered from ready_for_future_call.
	ReadyDelay time.Duration

	// DefaultVoiceID is the stock voice used on the fallback path.
	DefaultVoiceID string
	// PhoneNumberID is the platform number outbound callbacks dial from.
	PhoneNumberID string
}

func (c *Config) applyDefaults() {
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollCeiling <= 0 {
		c.PollCeiling = 5 * time.Minute
	}
	if c.ReadyDelay <= 0 {
		c.ReadyDelay = 10 * time.Second
	}
}

// Scheduler coordinates persona creation across three paths: primary (clone
// completed), fallback (timeout, default voice), and polling (clone still in
// flight when the fallback fires). Persona creation is at-most-once per
// session no matter how the paths interleave.
type Scheduler struct {
	platform Platform
	store    session.Store
	cfg      Config
	logger   *zap.Logger
}

func New(platform Platform, store session.Store, cfg Config, logger *zap.Logger) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		platform: platform,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// OnSessionStart arms the fallback timer. If the clone pipeline has not
// delivered a voice by then, the persona is created with the default voice.
func (s *Scheduler) OnSessionStart(sessionID string) {
	s.store.SetTimer(sessionID, timerFallback, s.cfg.FallbackTimeout, func() {
		s.onFallback(sessionID)
	})
	s.logger.Debug("Fallback timer armed",
		zap.String("session_id", sessionID),
		zap.Duration("timeout", s.cfg.FallbackTimeout),
	)
}

// OnCloneReady is the primary path: the clone finished, so the persona is
// created immediately with the cloned voice.
func (s *Scheduler) OnCloneReady(sessionID string) {
	s.store.CancelTimer(sessionID, timerFallback)
	s.store.CancelTimer(sessionID, timerPoll)

	sess, ok := s.store.Get(sessionID)
	if !ok {
		s.logger.Warn("Clone completed for unknown session", zap.String("session_id", sessionID))
		return
	}
	s.createPersona(sessionID, sess.VoiceID, "primary")
}

// onFallback fires when the clone has not completed in time. A clone that is
// still in flight gets the polling path; anything else falls straight back to
// the default voice.
func (s *Scheduler) onFallback(sessionID string) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return
	}
	if sess.FutureSelfCreated {
		return
	}

	if sess.CloneInFlight && !sess.CloneReady {
		s.logger.Info("Fallback fired while clone in flight, polling",
			zap.String("session_id", sessionID),
			zap.Duration("interval", s.cfg.PollInterval),
			zap.Duration("ceiling", s.cfg.PollCeiling),
		)
		s.pollClone(sessionID, time.Now().Add(s.cfg.PollCeiling))
		return
	}

	s.logger.Info("Clone not ready at fallback timeout, using default voice",
		zap.String("session_id", sessionID),
	)
	s.createPersona(sessionID, s.cfg.DefaultVoiceID, "fallback")
}

// pollClone re-checks clone state at a fixed interval until it resolves or
// the deadline passes. Past the deadline the session is marked failed; the
// clone submission is ambiguous at that point and must not be repeated.
func (s *Scheduler) pollClone(sessionID string, deadline time.Time) {
	sess, ok := s.store.Get(sessionID)
	if !ok || sess.FutureSelfCreated {
		return
	}

	if sess.CloneReady {
		s.createPersona(sessionID, sess.VoiceID, "poll")
		return
	}
	if !sess.CloneInFlight {
		// The clone resolved to a terminal failure while we were waiting.
		s.createPersona(sessionID, s.cfg.DefaultVoiceID, "poll-fallback")
		return
	}

	if time.Now().After(deadline) {
		s.logger.Error("Gave up waiting for clone resolution",
			zap.String("session_id", sessionID),
			zap.Duration("ceiling", s.cfg.PollCeiling),
		)
		s.store.Update(sessionID, func(sess *session.Session) {
			sess.Status = session.StatusError
		})
		return
	}

	s.store.SetTimer(sessionID, timerPoll, s.cfg.PollInterval, func() {
		s.pollClone(sessionID, deadline)
	})
}

// createPersona performs the at-most-once assistant creation and the state
// transitions that follow it. The latch is claimed on the session record
// before any network call, so a near-simultaneous primary and fallback firing
// produce exactly one assistant.
func (s *Scheduler) createPersona(sessionID, voiceID, path string) {
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	var claimed bool
	sess, ok := s.store.Update(sessionID, func(sess *session.Session) {
		if sess.FutureSelfCreated {
			return
		}
		sess.FutureSelfCreated = true
		sess.Status = session.StatusProcessing
		sess.CallState = session.StatePreparingInterruption
		claimed = true
	})
	if !ok {
		s.logger.Warn("Persona creation for unknown session", zap.String("session_id", sessionID))
		return
	}
	if !claimed {
		s.logger.Debug("Persona already created, skipping",
			zap.String("session_id", sessionID),
			zap.String("path", path),
		)
		return
	}

	if !s.platform.IsAvailable() {
		s.logger.Error("Call platform not configured, cannot create persona",
			zap.String("session_id", sessionID),
		)
		s.store.Update(sessionID, func(sess *session.Session) {
			sess.FutureSelfCreated = false
			sess.Status = session.StatusError
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assistantID, err := s.platform.CreateAssistant(ctx, persona.Build(sess, voiceID))
	if err != nil {
		s.logger.Error("Persona creation failed",
			zap.String("session_id", sessionID),
			zap.String("path", path),
			zap.Error(err),
		)
		s.store.Update(sessionID, func(sess *session.Session) {
			sess.FutureSelfCreated = false
			sess.Status = session.StatusError
		})
		return
	}

	sess, _ = s.store.Update(sessionID, func(sess *session.Session) {
		sess.AssistantID = assistantID
		sess.Status = session.StatusCallingBack
		sess.CallState = session.StateInterruptionDelivered
	})

	s.logger.Info("Future-self persona created",
		zap.String("session_id", sessionID),
		zap.String("assistant_id", assistantID),
		zap.String("voice_id", voiceID),
		zap.String("path", path),
	)

	if sess != nil {
		s.dialCallback(sessionID, sess)
	}

	s.store.SetTimer(sessionID, timerReady, s.cfg.ReadyDelay, func() {
		s.store.Update(sessionID, func(sess *session.Session) {
			sess.CallState = session.StateReadyForFutureCall
		})
		s.logger.Info("Session ready for future call", zap.String("session_id", sessionID))
	})
}

// dialCallback places the outbound call when a valid callback number exists.
// A missing or malformed number is not fatal: the assistant still exists and
// the status endpoint exposes it.
func (s *Scheduler) dialCallback(sessionID string, sess *session.Session) {
	if sess.CallbackNumber == "" {
		s.logger.Info("No callback number on session, skipping dial",
			zap.String("session_id", sessionID),
		)
		return
	}
	if !utils.ValidateE164(sess.CallbackNumber) {
		s.logger.Warn("Callback number is not E.164, skipping dial",
			zap.String("session_id", sessionID),
			zap.String("number", utils.MaskPhoneNumber(sess.CallbackNumber)),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	callID, err := s.platform.CreateCall(ctx, &vapi.CallRequest{
		AssistantID:    sess.AssistantID,
		PhoneNumberID:  s.cfg.PhoneNumberID,
		CustomerNumber: sess.CallbackNumber,
	})
	if err != nil {
		s.logger.Error("Callback dial failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Callback dialed",
		zap.String("session_id", sessionID),
		zap.String("callback_call_id", callID),
		zap.String("number", utils.MaskPhoneNumber(sess.CallbackNumber)),
	)
}

// OnCallEnded finalizes the counseling call: marks the session and, once the
// persona exists, leaves the record alive for the status endpoint. The store
// cancels all timers when a session is deleted.
func (s *Scheduler) OnCallEnded(sessionID string) {
	s.store.Update(sessionID, func(sess *session.Session) {
		sess.EndedAt = time.Now()
		if sess.Status != session.StatusError && sess.Status != session.StatusCompleted {
			if sess.FutureSelfCreated {
				sess.Status = session.StatusCompleted
			}
		}
	})
}
