package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mirrorline/futureself/internal/session"
)

func TestGetSessionStatus(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	s := store.Create("call-7")
	store.Update(s.ID, func(sess *session.Session) {
		sess.UserName = "Omar"
		sess.CallbackNumber = "+14155551234"
		sess.CloneReady = true
		sess.VoiceID = "v-1"
		sess.AssistantID = "asst-9"
		sess.CallState = session.StateInterruptionDelivered
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got SessionStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CallID != "call-7" || !got.CloneReady || got.AssistantID != "asst-9" {
		t.Errorf("unexpected status payload: %+v", got)
	}
	if got.CallState != string(session.StateInterruptionDelivered) {
		t.Errorf("call state = %q", got.CallState)
	}
	// Phone numbers never leave the service unmasked.
	if got.CallbackNumber == "+14155551234" {
		t.Error("callback number not masked")
	}
}

func TestGetSessionStatusNotFound(t *testing.T) {
	h, _ := newTestHandler()
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want problem+json", ct)
	}
}

func TestGetCallStatus(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	store.Create("call-3")

	req := httptest.NewRequest(http.MethodGet, "/api/calls/call-3/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/calls/ghost/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown call status = %d, want 404", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	store.Create("c1")
	store.Create("c2")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var got struct {
		Sessions []SessionStatus `json:"sessions"`
		Count    int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 2 || len(got.Sessions) != 2 {
		t.Errorf("count = %d, sessions = %d, want 2", got.Count, len(got.Sessions))
	}
}

func TestDeleteSession(t *testing.T) {
	h, store := newTestHandler()
	router := newTestRouter(h)

	s := store.Create("c1")

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+s.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if _, ok := store.Get(s.ID); ok {
		t.Error("session still present after delete")
	}
}

func TestTriggerCaptureUnknownCall(t *testing.T) {
	h, _ := newTestHandler()
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/calls/ghost/trigger-capture", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
