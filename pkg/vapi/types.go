package vapi

import "encoding/json"

// Webhook event types delivered by the call platform.
const (
	EventCallStart          = "call-start"
	EventStatusUpdate       = "status-update"
	EventTranscript         = "transcript"
	EventConversationUpdate = "conversation-update"
	EventSpeechUpdate       = "speech-update"
	EventUserInterrupted    = "user-interrupted"
	EventEndOfCallReport    = "end-of-call-report"
	EventHang               = "hang"
	EventError              = "error"
)

// Monitor carries the live stream URLs for an in-progress call. ListenURL is
// a websocket feed of raw PCM (binary frames) and JSON metadata (text frames).
type Monitor struct {
	ListenURL  string `json:"listenUrl"`
	ControlURL string `json:"controlUrl,omitempty"`
}

// Customer identifies the human side of the call.
type Customer struct {
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Call is the platform's call object, as embedded in webhook payloads.
type Call struct {
	ID       string   `json:"id"`
	Status   string   `json:"status,omitempty"`
	Customer Customer `json:"customer,omitempty"`
	Monitor  Monitor  `json:"monitor,omitempty"`
}

// ConversationTurn is one entry in the rolling conversation snapshot.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message is the current nested webhook payload.
type Message struct {
	Type           string             `json:"type"`
	Call           *Call              `json:"call,omitempty"`
	Status         string             `json:"status,omitempty"`
	Role           string             `json:"role,omitempty"`
	Transcript     string             `json:"transcript,omitempty"`
	TranscriptType string             `json:"transcriptType,omitempty"`
	Conversation   []ConversationTurn `json:"conversation,omitempty"`
	EndedReason    string             `json:"endedReason,omitempty"`
}

// Envelope accepts both the current nested shape {message:{type,...}} and the
// legacy flat shape {type, call, data} still emitted by older platform
// versions.
type Envelope struct {
	Message *Message        `json:"message,omitempty"`
	Type    string          `json:"type,omitempty"`
	Call    *Call           `json:"call,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Normalize folds the legacy flat envelope into a Message. Returns nil when
// neither shape carries a usable type.
func (e *Envelope) Normalize() *Message {
	if e.Message != nil && e.Message.Type != "" {
		return e.Message
	}
	if e.Type == "" {
		return nil
	}
	msg := &Message{Type: e.Type, Call: e.Call}
	if len(e.Data) > 0 {
		// Legacy payloads carried transcript/status fields inside data.
		var legacy struct {
			Status     string `json:"status,omitempty"`
			Role       string `json:"role,omitempty"`
			Transcript string `json:"transcript,omitempty"`
		}
		if err := json.Unmarshal(e.Data, &legacy); err == nil {
			msg.Status = legacy.Status
			msg.Role = legacy.Role
			msg.Transcript = legacy.Transcript
		}
	}
	return msg
}

// AssistantRequest describes a new AI assistant to create on the platform.
type AssistantRequest struct {
	Name               string
	FirstMessage       string
	SystemPrompt       string
	VoiceID            string
	EndCallPhrases     []string
	MaxDurationSeconds int
}

// CallRequest dials an outbound call from a platform phone number to the
// customer, driven by an existing assistant.
type CallRequest struct {
	AssistantID    string
	PhoneNumberID  string
	CustomerNumber string
}
