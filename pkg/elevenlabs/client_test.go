package elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "eleven_multilingual_v2", 5*time.Second, zap.NewNop())
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestCloneVoiceSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices/add" {
			t.Errorf("path = %s, want /voices/add", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Error("missing xi-api-key header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not a multipart request: %v", err)
		}
		if got := r.FormValue("name"); got != "Future Alice" {
			t.Errorf("name field = %q", got)
		}
		if _, _, err := r.FormFile("files"); err != nil {
			t.Errorf("missing files part: %v", err)
		}
		w.Write([]byte(`{"voice_id":"v_abc123"}`))
	})

	id, err := c.CloneVoice(context.Background(), &CloneRequest{
		Name:    "Future Alice",
		WAVData: make([]byte, 2048),
	})
	if err != nil {
		t.Fatalf("CloneVoice: %v", err)
	}
	if id != "v_abc123" {
		t.Errorf("voice id = %q, want v_abc123", id)
	}
}

func TestCloneVoiceErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		rejected  bool
	}{
		{name: "server error is transient", status: 502, transient: true},
		{name: "rate limit is transient", status: 429, transient: true},
		{name: "bad sample is rejected", status: 400, rejected: true},
		{name: "unauthorized is rejected", status: 401, rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"detail":"nope"}`))
			})

			_, err := c.CloneVoice(context.Background(), &CloneRequest{
				Name:    "x",
				WAVData: []byte{1},
			})
			if err == nil {
				t.Fatal("want error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), tt.transient)
			}
			if IsRejected(err) != tt.rejected {
				t.Errorf("IsRejected = %v, want %v", IsRejected(err), tt.rejected)
			}
			if IsAmbiguousTimeout(err) {
				t.Error("got ambiguous timeout for a received response")
			}
		})
	}
}

func TestCloneVoiceNoResponseIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening: Do fails without a response

	c := NewClient("test-key", "", 200*time.Millisecond, zap.NewNop())
	c.SetBaseURL(srv.URL)

	_, err := c.CloneVoice(context.Background(), &CloneRequest{Name: "x", WAVData: []byte{1}})
	if !IsAmbiguousTimeout(err) {
		t.Fatalf("want AmbiguousTimeoutError, got %v", err)
	}
	if IsTransient(err) || IsRejected(err) {
		t.Error("ambiguous timeout misclassified")
	}
}

func TestListClonedVoicesFiltersCategory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"voices":[
			{"voice_id":"v1","name":"Rachel","category":"premade"},
			{"voice_id":"v2","name":"Future Bob","category":"cloned"},
			{"voice_id":"v3","name":"Future Cara","category":"cloned"}
		]}`))
	})

	cloned, err := c.ListClonedVoices(context.Background())
	if err != nil {
		t.Fatalf("ListClonedVoices: %v", err)
	}
	if len(cloned) != 2 {
		t.Fatalf("got %d voices, want 2", len(cloned))
	}
	if cloned[0].VoiceID != "v2" || cloned[1].VoiceID != "v3" {
		t.Errorf("wrong voices: %+v", cloned)
	}
}

func TestDeleteVoice(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{"status":"ok"}`))
	})

	if err := c.DeleteVoice(context.Background(), "v_abc"); err != nil {
		t.Fatalf("DeleteVoice: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/voices/v_abc" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}

	if err := c.DeleteVoice(context.Background(), ""); err == nil {
		t.Error("empty voice id accepted")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("", "", time.Second, zap.NewNop())
	if c.IsAvailable() {
		t.Error("client without key reports available")
	}
	if _, err := c.CloneVoice(context.Background(), &CloneRequest{Name: "x", WAVData: []byte{1}}); err == nil {
		t.Error("clone without key should fail")
	}
}
