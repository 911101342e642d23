package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/extract"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/audit"
	"github.com/mirrorline/futureself/pkg/errors"
	"github.com/mirrorline/futureself/pkg/utils"
	"github.com/mirrorline/futureself/pkg/vapi"
)

// PlatformWebhook demultiplexes inbound call-platform events. Structurally
// invalid payloads get a 400 and touch nothing; every recognized type is
// acknowledged with 200 {success:true} regardless of processing outcome,
// because the platform only retries on transport failures.
func (h *Handler) PlatformWebhook(c *gin.Context) {
	var envelope vapi.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		errors.BadRequest(c, "invalid webhook payload")
		return
	}

	msg := envelope.Normalize()
	if msg == nil {
		errors.BadRequest(c, "missing event type")
		return
	}

	switch msg.Type {
	case vapi.EventCallStart:
		h.handleCallStart(msg)
	case vapi.EventStatusUpdate:
		h.handleStatusUpdate(msg)
	case vapi.EventTranscript:
		h.handleTranscript(msg)
	case vapi.EventConversationUpdate:
		h.handleConversationUpdate(msg)
	case vapi.EventEndOfCallReport, vapi.EventHang:
		h.handleCallEnd(msg)
	case vapi.EventSpeechUpdate, vapi.EventUserInterrupted:
		// Presence-only events; nothing to mutate.
		h.logger.Debug("Speech event", zap.String("type", msg.Type))
	case vapi.EventError:
		h.handleCallError(msg)
	default:
		// New platform event types show up without notice. Acknowledge them
		// so the platform does not treat us as broken.
		h.logger.Info("Unhandled webhook event type", zap.String("type", msg.Type))
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) handleCallStart(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" {
		h.logger.Warn("call-start event without a call id")
		return
	}
	callID := msg.Call.ID

	_, existed := h.store.GetByCall(callID)
	s := h.store.Create(callID)

	h.store.Update(s.ID, func(sess *session.Session) {
		sess.Status = session.StatusCounseling
		if msg.Call.Customer.Number != "" {
			sess.CallbackNumber = utils.NormalizePhone(msg.Call.Customer.Number)
		}
		if msg.Call.Customer.Name != "" {
			sess.SetUserName(msg.Call.Customer.Name)
		}
	})

	if existed {
		h.logger.Debug("Duplicate call-start", zap.String("call_id", callID))
		return
	}

	h.scheduler.OnSessionStart(s.ID)

	if msg.Call.Monitor.ListenURL != "" {
		sessionID := s.ID
		err := h.captures.Attach(callID, msg.Call.Monitor.ListenURL, func(sample capture.Sample) {
			h.onSample(sessionID, sample)
		})
		if err != nil {
			h.logger.Error("Failed to attach to monitor feed",
				zap.String("call_id", callID),
				zap.Error(err),
			)
		}
	} else {
		h.logger.Warn("call-start without a monitor feed, no voice capture",
			zap.String("call_id", callID),
		)
	}

	h.mirrorCallRecord(callID, "started", "")
	audit.Log(h.mongoClient, "system", string(audit.ActionCallStart), "session", s.ID, map[string]interface{}{
		"call_id": callID,
	})

	h.logger.Info("Counseling session started",
		zap.String("session_id", s.ID),
		zap.String("call_id", callID),
	)
}

// onSample is the capture pipeline's hand-off: package and submit the voice
// sample. Runs off the websocket read loop.
func (h *Handler) onSample(sessionID string, sample capture.Sample) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.cfg.ElevenLabsTimeoutSec+30)*time.Second)
	defer cancel()

	if err := h.dispatcher.Dispatch(ctx, sessionID, sample); err != nil {
		// The fallback timer covers the user either way; this is diagnostic.
		h.logger.Error("Clone dispatch failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (h *Handler) handleStatusUpdate(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" {
		return
	}
	h.logger.Debug("Call status update",
		zap.String("call_id", msg.Call.ID),
		zap.String("status", msg.Status),
	)
	if msg.Status == "ended" {
		h.handleCallEnd(msg)
	}
}

func (h *Handler) handleTranscript(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" || msg.Transcript == "" {
		return
	}
	// Partial transcripts churn constantly; only finals are worth keeping.
	if msg.TranscriptType != "" && msg.TranscriptType != "final" {
		return
	}

	role := msg.Role
	if role == "" {
		role = "user"
	}

	_, ok := h.store.UpdateByCall(msg.Call.ID, func(sess *session.Session) {
		if sess.AppendTranscript(role, msg.Transcript, time.Now()) && role == "user" {
			h.applyFacts(sess, msg.Transcript)
		}
	})
	if !ok {
		h.logger.Warn("Transcript for unknown call", zap.String("call_id", msg.Call.ID))
	}
}

func (h *Handler) handleConversationUpdate(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" || len(msg.Conversation) == 0 {
		return
	}

	_, ok := h.store.UpdateByCall(msg.Call.ID, func(sess *session.Session) {
		for _, turn := range msg.Conversation {
			if turn.Content == "" || turn.Role == "system" {
				continue
			}
			if sess.AppendTranscript(turn.Role, turn.Content, time.Now()) && turn.Role == "user" {
				h.applyFacts(sess, turn.Content)
			}
		}
	})
	if !ok {
		h.logger.Warn("Conversation update for unknown call", zap.String("call_id", msg.Call.ID))
	}
}

// applyFacts runs the transcript extractors against one new user utterance.
// Facts are first-match-wins, enforced by the session setters. Runs inside a
// store Update closure.
func (h *Handler) applyFacts(sess *session.Session, text string) {
	if fact, ok := extract.Name(text); ok {
		if sess.SetUserName(fact.Value) {
			h.logger.Info("Caller name extracted",
				zap.String("session_id", sess.ID),
				zap.String("name", fact.Value),
			)
		}
	}
	if fact, ok := extract.Problem(text); ok {
		if sess.SetProblemDescription(fact.Value) {
			h.logger.Info("Problem description extracted",
				zap.String("session_id", sess.ID),
			)
		}
	}
}

func (h *Handler) handleCallEnd(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" {
		return
	}
	callID := msg.Call.ID

	sess, ok := h.store.GetByCall(callID)
	if !ok {
		h.logger.Warn("End-of-call for unknown call", zap.String("call_id", callID))
		return
	}

	h.captures.Detach(callID)
	h.scheduler.OnCallEnded(sess.ID)
	h.mirrorCallRecord(callID, "ended", msg.EndedReason)

	h.logger.Info("Counseling call ended",
		zap.String("session_id", sess.ID),
		zap.String("call_id", callID),
		zap.String("reason", msg.EndedReason),
	)
}

func (h *Handler) handleCallError(msg *vapi.Message) {
	if msg.Call == nil || msg.Call.ID == "" {
		h.logger.Error("Platform error event without call id")
		return
	}
	h.logger.Error("Platform reported call error",
		zap.String("call_id", msg.Call.ID),
	)
	h.store.UpdateByCall(msg.Call.ID, func(sess *session.Session) {
		sess.Status = session.StatusError
	})
	h.captures.Detach(msg.Call.ID)
}

// mirrorCallRecord keeps a non-authoritative copy of call lifecycle events in
// MongoDB for offline analysis. Failures are logged and swallowed; the session
// store remains the source of truth.
func (h *Handler) mirrorCallRecord(callID, status, endedReason string) {
	if h.mongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := map[string]interface{}{
		"call_id": callID,
		"status":  status,
	}
	if endedReason != "" {
		record["ended_reason"] = endedReason
	}

	existing, _ := h.mongoClient.NewQuery("calls").
		Select("call_id").
		Eq("call_id", callID).
		FindOne(ctx)

	var err error
	if existing != nil {
		_, err = h.mongoClient.NewQuery("calls").
			Eq("call_id", callID).
			UpdateOne(ctx, record)
	} else {
		record["created_at"] = time.Now().Format(time.RFC3339)
		_, err = h.mongoClient.NewQuery("calls").Insert(ctx, record)
	}
	if err != nil {
		h.logger.Warn("Failed to mirror call record",
			zap.String("call_id", callID),
			zap.Error(err),
		)
	}
}
