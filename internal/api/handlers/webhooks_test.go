package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/clone"
	"github.com/mirrorline/futureself/internal/scheduler"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/elevenlabs"
	"github.com/mirrorline/futureself/pkg/env"
	"github.com/mirrorline/futureself/pkg/logger"
	"github.com/mirrorline/futureself/pkg/storage"
	"github.com/mirrorline/futureself/pkg/vapi"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	m.Run()
}

func newTestHandler() (*Handler, session.Store) {
	nop := zap.NewNop()
	store := session.NewMemoryStore(nop)
	captures := capture.NewManager(capture.Config{
		TriggerAfter: time.Hour,
		RingCapacity: 10,
	}, nop)
	eleven := elevenlabs.NewClient("", "", time.Second, nop)
	dispatcher := clone.NewDispatcher(eleven, store, nil, 3, nop)
	sched := scheduler.New(
		vapi.NewClient("", "", time.Second, nop),
		store,
		scheduler.Config{FallbackTimeout: time.Hour, ReadyDelay: time.Hour},
		nop,
	)

	cfg := &env.Config{ElevenLabsTimeoutSec: 1}
	h := NewHandler(cfg, store, captures, dispatcher, sched, eleven, storage.NullDriver{}, nil, nil)
	return h, store
}

func newTestRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.POST("/webhooks/vapi", h.PlatformWebhook)
	router.GET("/api/sessions", h.ListSessions)
	router.GET("/api/sessions/:id", h.GetSessionStatus)
	router.DELETE("/api/sessions/:id", h.DeleteSession)
	router.GET("/api/calls/:call_id/status", h.GetCallStatus)
	router.POST("/api/calls/:call_id/trigger-capture", h.TriggerCapture)
	return router
}

func postWebhook(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/vapi", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "this is not json"},
		{name: "missing type", body: `{"message":{"call":{"id":"c1"}}}`},
		{name: "empty type", body: `{"message":{"type":""}}`},
		{name: "empty object", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	if n := len(store.List()); n != 0 {
		t.Errorf("malformed payloads created %d sessions", n)
	}
}

func TestWebhookCallStartCreatesSession(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	w := postWebhook(router, `{"message":{"type":"call-start","call":{"id":"call-42","customer":{"number":"+14155551234","name":"Ava"}}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("body = %s, want success ack", w.Body.String())
	}

	s, ok := store.GetByCall("call-42")
	if !ok {
		t.Fatal("session not created")
	}
	if s.Status != session.StatusCounseling {
		t.Errorf("status = %s, want counseling", s.Status)
	}
	if s.CallbackNumber != "+14155551234" {
		t.Errorf("callback number = %q", s.CallbackNumber)
	}
	if s.UserName != "Ava" {
		t.Errorf("user name = %q", s.UserName)
	}

	// Redelivered call-start must not reset anything.
	postWebhook(router, `{"message":{"type":"call-start","call":{"id":"call-42"}}}`)
	if n := len(store.List()); n != 1 {
		t.Errorf("sessions = %d after duplicate call-start, want 1", n)
	}
}

func TestWebhookLegacyFlatEnvelope(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	w := postWebhook(router, `{"type":"call-start","call":{"id":"legacy-1"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := store.GetByCall("legacy-1"); !ok {
		t.Error("flat envelope did not create a session")
	}
}

func TestWebhookTranscriptExtractsFacts(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	postWebhook(router, `{"message":{"type":"call-start","call":{"id":"c1"}}}`)
	postWebhook(router, `{"message":{"type":"transcript","call":{"id":"c1"},"role":"user","transcriptType":"final","transcript":"Hi, my name is Sarah"}}`)
	postWebhook(router, `{"message":{"type":"transcript","call":{"id":"c1"},"role":"user","transcriptType":"final","transcript":"I keep putting off everything important in my life and I hate it"}}`)
	// Partial transcripts must be ignored.
	postWebhook(router, `{"message":{"type":"transcript","call":{"id":"c1"},"role":"user","transcriptType":"partial","transcript":"noise"}}`)

	s, _ := store.GetByCall("c1")
	if s.UserName != "Sarah" {
		t.Errorf("user name = %q, want Sarah", s.UserName)
	}
	if !strings.Contains(s.ProblemDescription, "putting off") {
		t.Errorf("problem = %q", s.ProblemDescription)
	}
	if len(s.Transcript) != 2 {
		t.Errorf("transcript entries = %d, want 2 (partial dropped)", len(s.Transcript))
	}
}

func TestWebhookConversationUpdateDedupes(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	postWebhook(router, `{"message":{"type":"call-start","call":{"id":"c1"}}}`)

	snapshot := `{"message":{"type":"conversation-update","call":{"id":"c1"},"conversation":[
		{"role":"system","content":"you are a counselor"},
		{"role":"assistant","content":"How are you feeling today?"},
		{"role":"user","content":"Not great honestly"}
	]}}`
	postWebhook(router, snapshot)
	postWebhook(router, snapshot)

	s, _ := store.GetByCall("c1")
	if len(s.Transcript) != 2 {
		t.Errorf("transcript entries = %d, want 2 (system dropped, snapshot deduped)", len(s.Transcript))
	}
}

func TestWebhookTranscriptUnknownCallAcked(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	w := postWebhook(router, `{"message":{"type":"transcript","call":{"id":"ghost"},"transcript":"hello"}}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, processing failures must still ack", w.Code)
	}
	if n := len(store.List()); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
}

func TestWebhookEndOfCall(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	postWebhook(router, `{"message":{"type":"call-start","call":{"id":"c1"}}}`)
	w := postWebhook(router, `{"message":{"type":"end-of-call-report","call":{"id":"c1"},"endedReason":"customer-ended-call"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	s, ok := store.GetByCall("c1")
	if !ok {
		t.Fatal("session must survive call end for status queries")
	}
	if s.EndedAt.IsZero() {
		t.Error("EndedAt not recorded")
	}
}

func TestWebhookUnknownTypeAcked(t *testing.T) {
	h, _ := newTestHandler()
	router := newTestRouter(h)

	w := postWebhook(router, `{"message":{"type":"model-output","call":{"id":"c1"}}}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, unknown types must be acknowledged", w.Code)
	}
}

func TestWebhookErrorEventMarksSession(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	postWebhook(router, `{"message":{"type":"call-start","call":{"id":"c1"}}}`)
	postWebhook(router, `{"message":{"type":"error","call":{"id":"c1"}}}`)

	s, _ := store.GetByCall("c1")
	if s.Status != session.StatusError {
		t.Errorf("status = %s, want error", s.Status)
	}
}
