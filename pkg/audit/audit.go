package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/logger"
	"github.com/mirrorline/futureself/pkg/mongo"
)

// Action represents an audit action
type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionCallStart     Action = "call_start"
	ActionCallEnd       Action = "call_end"
	ActionCloneSubmit   Action = "clone_submit"
	ActionPersonaCreate Action = "persona_create"
	ActionVoiceDelete   Action = "voice_delete"
)

// Log logs an audit event
func Log(client *mongo.Client, userID, action, resourceType, resourceID string, metadata map[string]interface{}) error {
	if client == nil {
		logger.Log.Warn("Audit logging skipped: MongoDB client not available")
		return nil
	}

	metadataJSON, _ := json.Marshal(metadata)

	auditData := map[string]interface{}{
		"user_id":       userID,
		"action":        action,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"metadata":      string(metadataJSON),
		"created_at":    time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.NewQuery("audit_log").Insert(ctx, auditData)
	if err != nil {
		logger.Log.Error("Failed to log audit event",
			zap.Error(err),
			zap.String("action", action),
			zap.String("resource_type", resourceType),
		)
		return err
	}

	return nil
}
