package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/audit"
	"github.com/mirrorline/futureself/pkg/errors"
	"github.com/mirrorline/futureself/pkg/utils"
)

// SessionStatus is the externally visible projection of a session.
type SessionStatus struct {
	SessionID      string `json:"session_id"`
	CallID         string `json:"call_id"`
	Status         string `json:"status"`
	CallState      string `json:"call_state"`
	UserName       string `json:"user_name,omitempty"`
	CallbackNumber string `json:"callback_number,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	CloneReady     bool   `json:"clone_ready"`
	AssistantID    string `json:"assistant_id,omitempty"`
	Transcripts    int    `json:"transcript_entries"`
	CaptureChunks  int    `json:"capture_chunks,omitempty"`
	CaptureBytes   int    `json:"capture_bytes,omitempty"`
}

func (h *Handler) statusOf(s *session.Session) SessionStatus {
	status := SessionStatus{
		SessionID:      s.ID,
		CallID:         s.CallID,
		Status:         string(s.Status),
		CallState:      string(s.CallState),
		UserName:       s.UserName,
		CallbackNumber: utils.MaskPhoneNumber(s.CallbackNumber),
		ElapsedSeconds: s.ElapsedSeconds(),
		CloneReady:     s.CloneReady,
		AssistantID:    s.AssistantID,
		Transcripts:    len(s.Transcript),
	}
	if c, ok := h.captures.Get(s.CallID); ok {
		status.CaptureChunks, status.CaptureBytes = c.Stats()
	}
	return status
}

// GetSessionStatus reports one session by id.
func (h *Handler) GetSessionStatus(c *gin.Context) {
	id := c.Param("id")
	s, ok := h.store.Get(id)
	if !ok {
		errors.NotFound(c, "session not found")
		return
	}
	c.JSON(http.StatusOK, h.statusOf(s))
}

// GetCallStatus reports the session owning a platform call id.
func (h *Handler) GetCallStatus(c *gin.Context) {
	callID := c.Param("call_id")
	s, ok := h.store.GetByCall(callID)
	if !ok {
		errors.NotFound(c, "no session for call")
		return
	}
	c.JSON(http.StatusOK, h.statusOf(s))
}

// ListSessions enumerates all live sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.store.List()
	out := make([]SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, h.statusOf(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": out,
		"count":    len(out),
	})
}

// DeleteSession tears a session down: capture feed closed, timers cancelled,
// record removed.
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	s, ok := h.store.Get(id)
	if !ok {
		errors.NotFound(c, "session not found")
		return
	}

	h.captures.Detach(s.CallID)
	h.store.Delete(id)

	audit.Log(h.mongoClient, c.GetString("user_id"), string(audit.ActionDelete), "session", id, map[string]interface{}{
		"call_id": s.CallID,
	})

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// TriggerCapture forces sample extraction for a call before the elapsed-time
// threshold. Meant for short test calls.
func (h *Handler) TriggerCapture(c *gin.Context) {
	callID := c.Param("call_id")
	if err := h.captures.TriggerNow(callID); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggered": callID})
}

// GetSample serves the archived clone sample for a call.
func (h *Handler) GetSample(c *gin.Context) {
	callID := c.Param("call_id")
	path, err := h.archive.SamplePath(callID)
	if err != nil {
		errors.NotFound(c, "no archived sample for call")
		return
	}
	c.Header("Content-Type", "audio/wav")
	c.File(path)
}
