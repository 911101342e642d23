package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/client"
)

// Client talks to the call platform's REST API (assistant and call creation).
// Requests go through the shared HTTP client so they pick up retry, circuit
// breaking, and service metrics.
type Client struct {
	apiKey  string
	baseURL string
	http    *client.HTTPClient
	logger  *zap.Logger
}

func NewClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: client.NewHTTPClient("vapi", timeout, map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
		logger: logger,
	}
}

// IsAvailable checks whether the client is configured with an API key.
func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

// CreateAssistant registers a new assistant and returns its platform id.
func (c *Client) CreateAssistant(ctx context.Context, req *AssistantRequest) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("call platform not available. Set VAPI_API_KEY environment variable")
	}
	if req.SystemPrompt == "" {
		return "", fmt.Errorf("system prompt cannot be empty")
	}

	body := map[string]interface{}{
		"name":         req.Name,
		"firstMessage": req.FirstMessage,
		"model": map[string]interface{}{
			"provider": "openai",
			"model":    "gpt-4o",
			"messages": []map[string]string{
				{"role": "system", "content": req.SystemPrompt},
			},
		},
		"voice": map[string]interface{}{
			"provider": "11labs",
			"voiceId":  req.VoiceID,
		},
	}
	if len(req.EndCallPhrases) > 0 {
		body["endCallPhrases"] = req.EndCallPhrases
	}
	if req.MaxDurationSeconds > 0 {
		body["maxDurationSeconds"] = req.MaxDurationSeconds
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/assistant", body)
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assistant API error: %d - %s", resp.StatusCode, string(raw))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to parse assistant response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("assistant response missing id")
	}

	c.logger.Info("Assistant created",
		zap.String("assistant_id", created.ID),
		zap.String("name", req.Name),
		zap.String("voice_id", req.VoiceID),
	)
	return created.ID, nil
}

// CreateCall dials the customer with the given assistant and returns the new
// call id.
func (c *Client) CreateCall(ctx context.Context, req *CallRequest) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("call platform not available. Set VAPI_API_KEY environment variable")
	}
	if req.AssistantID == "" || req.CustomerNumber == "" {
		return "", fmt.Errorf("assistant id and customer number are required")
	}

	body := map[string]interface{}{
		"assistantId":   req.AssistantID,
		"phoneNumberId": req.PhoneNumberID,
		"customer": map[string]string{
			"number": req.CustomerNumber,
		},
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/call", body)
	if err != nil {
		return "", fmt.Errorf("failed to create call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("call API error: %d - %s", resp.StatusCode, string(raw))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to parse call response: %w", err)
	}

	c.logger.Info("Outbound callback dialed",
		zap.String("call_id", created.ID),
		zap.String("assistant_id", req.AssistantID),
	)
	return created.ID, nil
}
