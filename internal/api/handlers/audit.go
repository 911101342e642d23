package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/errors"
	"github.com/mirrorline/futureself/pkg/utils"
)

type AuditLogResponse struct {
	UserID       string                 `json:"user_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    string                 `json:"created_at"`
}

// ListAuditLogs exposes the clone/persona/teardown audit trail mirrored to
// MongoDB.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	if h.mongoClient == nil {
		errors.ErrorResponse(c, http.StatusServiceUnavailable,
			"Service Unavailable", "audit storage not configured")
		return
	}

	pagination := utils.ParsePagination(c)

	action := c.Query("action")
	resourceType := c.Query("resource_type")
	resourceID := c.Query("resource_id")
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	query := h.mongoClient.NewQuery("audit_log").Select("*")

	if action != "" {
		query = query.Eq("action", action)
	}
	if resourceType != "" {
		query = query.Eq("resource_type", resourceType)
	}
	if resourceID != "" {
		query = query.Eq("resource_id", resourceID)
	}

	// Date filtering
	if startDate != "" || endDate != "" {
		if startDate != "" {
			query = query.Gte("created_at", startDate)
		}
		if endDate != "" {
			query = query.Lte("created_at", endDate)
		}
	} else {
		// Default to last 30 days
		query = query.Gte("created_at", time.Now().AddDate(0, 0, -30).Format(time.RFC3339))
	}

	query = query.Sort("created_at", false)
	query = query.Limit(int64(pagination.Limit))

	logs, err := query.Find(ctx)
	if err != nil {
		h.logger.Error("Failed to fetch audit logs", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	auditLogs := make([]AuditLogResponse, 0, len(logs))
	for _, entry := range logs {
		metadataStr, _ := entry["metadata"].(string)
		var metadata map[string]interface{}
		json.Unmarshal([]byte(metadataStr), &metadata)

		auditLogs = append(auditLogs, AuditLogResponse{
			UserID:       asString(entry["user_id"]),
			Action:       asString(entry["action"]),
			ResourceType: asString(entry["resource_type"]),
			ResourceID:   asString(entry["resource_id"]),
			Metadata:     metadata,
			CreatedAt:    asString(entry["created_at"]),
		})
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data:  auditLogs,
		Page:  pagination.Page,
		Limit: pagination.Limit,
		Count: len(auditLogs),
	})
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
