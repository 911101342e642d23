package persona

import (
	"strings"
	"testing"
	"time"

	"github.com/mirrorline/futureself/internal/session"
)

func TestBuildEmbedsSessionFacts(t *testing.T) {
	s := &session.Session{
		UserName:           "Maya",
		ProblemDescription: "I feel stuck in my job and I am scared to leave",
	}
	s.AppendTranscript("assistant", "Tell me more about that.", time.Now())
	s.AppendTranscript("user", "Every morning I dread going in.", time.Now())

	req := Build(s, "voice-123")

	if req.Name != "Future Maya" {
		t.Errorf("assistant name = %q", req.Name)
	}
	if req.VoiceID != "voice-123" {
		t.Errorf("voice id = %q", req.VoiceID)
	}
	if !strings.Contains(req.SystemPrompt, "Maya") {
		t.Error("system prompt missing caller name")
	}
	if !strings.Contains(req.SystemPrompt, "scared to leave") {
		t.Error("system prompt missing problem description")
	}
	if !strings.Contains(req.SystemPrompt, "dread going in") {
		t.Error("system prompt missing user transcript line")
	}
	if strings.Contains(req.SystemPrompt, "Tell me more about that") {
		t.Error("counselor's lines should not appear in the digest")
	}
	if !strings.Contains(req.FirstMessage, "Maya") {
		t.Error("first message missing caller name")
	}
	if len(req.EndCallPhrases) == 0 {
		t.Error("no end-call phrases set")
	}
	if req.MaxDurationSeconds != 600 {
		t.Errorf("max duration = %d, want 600", req.MaxDurationSeconds)
	}
}

func TestBuildAnonymousCaller(t *testing.T) {
	req := Build(&session.Session{}, "voice-1")
	if req.Name != "Future friend" {
		t.Errorf("assistant name = %q", req.Name)
	}
	if req.SystemPrompt == "" || req.FirstMessage == "" {
		t.Error("empty prompt for anonymous caller")
	}
}

func TestTranscriptDigestTruncatesFromFront(t *testing.T) {
	var entries []session.TranscriptEntry
	for i := 0; i < 500; i++ {
		entries = append(entries, session.TranscriptEntry{
			Role: "user",
			Text: strings.Repeat("x", 50),
		})
	}
	entries = append(entries, session.TranscriptEntry{Role: "user", Text: "the final line"})

	digest := transcriptDigest(entries)
	if len(digest) > maxTranscriptChars {
		t.Errorf("digest length = %d, want <= %d", len(digest), maxTranscriptChars)
	}
	if !strings.HasSuffix(digest, "the final line") {
		t.Error("newest line dropped by truncation")
	}
	if !strings.HasPrefix(digest, "- ") {
		t.Errorf("truncation left a partial line: %q", digest[:20])
	}
}
