package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client talks to the ElevenLabs voice API: instant voice cloning plus the
// voice management endpoints the admin surface and purge tool need.
type Client struct {
	apiKey     string
	cloneModel string
	timeout    time.Duration
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an ElevenLabs client. Cloning can take well over a minute
// server-side, so timeout should be generous (120s in production config).
func NewClient(apiKey, cloneModel string, timeout time.Duration, logger *zap.Logger) *Client {
	if apiKey == "" {
		return &Client{logger: logger}
	}

	return &Client{
		apiKey:     apiKey,
		cloneModel: cloneModel,
		timeout:    timeout,
		logger:     logger,
		baseURL:    "https://api.elevenlabs.io/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IsAvailable checks whether the client is configured with an API key.
func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

// CloneRequest is one instant-voice-clone submission.
type CloneRequest struct {
	Name        string
	Description string
	WAVData     []byte
}

// Voice is one provider-side voice entry.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// CloneVoice uploads a WAV sample and returns the provider-assigned voice id.
// Errors are classified for the dispatcher: *TransientError (retry),
// *RejectedError (terminal), *AmbiguousTimeoutError (no response at all).
func (c *Client) CloneVoice(ctx context.Context, req *CloneRequest) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("voice cloning not available. Set ELEVENLABS_API_KEY environment variable")
	}
	if req.Name == "" {
		return "", fmt.Errorf("voice name cannot be empty")
	}
	if len(req.WAVData) == 0 {
		return "", fmt.Errorf("audio data cannot be empty")
	}

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("files", "sample.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.WAVData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("name", req.Name); err != nil {
		return "", fmt.Errorf("failed to write name field: %w", err)
	}
	if req.Description != "" {
		if err := writer.WriteField("description", req.Description); err != nil {
			return "", fmt.Errorf("failed to write description field: %w", err)
		}
	}
	if c.cloneModel != "" {
		if err := writer.WriteField("model_id", c.cloneModel); err != nil {
			return "", fmt.Errorf("failed to write model_id field: %w", err)
		}
	}
	writer.Close()

	url := fmt.Sprintf("%s/voices/add", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, &requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// No response at all. The provider may still finish the clone on its
		// side, so this is ambiguous rather than a definite failure.
		return "", &AmbiguousTimeoutError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &TransientError{Status: resp.StatusCode, Body: string(body)}
		}
		return "", &RejectedError{Status: resp.StatusCode, Body: string(body)}
	}

	var cloneResp struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cloneResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if cloneResp.VoiceID == "" {
		return "", &RejectedError{Status: resp.StatusCode, Body: "response missing voice_id"}
	}

	c.logger.Info("Voice clone created",
		zap.String("voice_id", cloneResp.VoiceID),
		zap.String("name", req.Name),
		zap.Int("sample_bytes", len(req.WAVData)),
		zap.Duration("took", time.Since(start)),
	)
	return cloneResp.VoiceID, nil
}

// ListVoices returns all voices on the account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("voice cloning not available. Set ELEVENLABS_API_KEY environment variable")
	}

	url := fmt.Sprintf("%s/voices", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs API error: %d - %s", resp.StatusCode, string(body))
	}

	var voicesResp struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return voicesResp.Voices, nil
}

// ListClonedVoices returns only voices in the "cloned" category, which is what
// the bulk-delete utility iterates.
func (c *Client) ListClonedVoices(ctx context.Context) ([]Voice, error) {
	all, err := c.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	cloned := make([]Voice, 0, len(all))
	for _, v := range all {
		if v.Category == "cloned" {
			cloned = append(cloned, v)
		}
	}
	return cloned, nil
}

// DeleteVoice removes a voice from the account.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	if !c.IsAvailable() {
		return fmt.Errorf("voice cloning not available. Set ELEVENLABS_API_KEY environment variable")
	}
	if voiceID == "" {
		return fmt.Errorf("voice id cannot be empty")
	}

	url := fmt.Sprintf("%s/voices/%s", c.baseURL, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ElevenLabs API error: %d - %s", resp.StatusCode, string(body))
	}
	return nil
}

// SetBaseURL overrides the API endpoint. Tests point this at a local server.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}
