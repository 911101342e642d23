package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/audit"
	"github.com/mirrorline/futureself/pkg/errors"
)

// ListClonedVoices enumerates the cloned voices on the provider account.
// Cloned voices accumulate (one per counseling session), so operators need
// visibility into what is sitting on the account.
func (h *Handler) ListClonedVoices(c *gin.Context) {
	if !h.voices.IsAvailable() {
		errors.ErrorResponse(c, http.StatusServiceUnavailable,
			"Service Unavailable", "voice provider not configured")
		return
	}

	voices, err := h.voices.ListClonedVoices(c.Request.Context())
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voices": voices,
		"count":  len(voices),
	})
}

// DeleteVoice removes one cloned voice from the provider account.
func (h *Handler) DeleteVoice(c *gin.Context) {
	voiceID := c.Param("voice_id")
	if voiceID == "" {
		errors.BadRequest(c, "voice id is required")
		return
	}
	if !h.voices.IsAvailable() {
		errors.ErrorResponse(c, http.StatusServiceUnavailable,
			"Service Unavailable", "voice provider not configured")
		return
	}

	if err := h.voices.DeleteVoice(c.Request.Context(), voiceID); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, c.GetString("user_id"), string(audit.ActionVoiceDelete), "voice", voiceID, nil)
	h.logger.Info("Cloned voice deleted", zap.String("voice_id", voiceID))

	c.JSON(http.StatusOK, gin.H{"deleted": voiceID})
}
