// Package persona synthesizes the "future self" assistant definition from what
// was learned during the counseling call.
package persona

import (
	"fmt"
	"strings"

	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/vapi"
)

const (
	// maxTranscriptChars bounds how much call history gets embedded in the
	// system prompt. Platform prompt limits sit well above this.
	maxTranscriptChars = 6000

	// callbackMaxDurationSec caps the future-self callback length.
	callbackMaxDurationSec = 600
)

var endCallPhrases = []string{
	"goodbye",
	"talk to you soon",
	"take care of us",
}

// Build assembles the assistant definition for the callback persona. voiceID
// is the cloned voice when cloning succeeded, or the configured default voice
// on the fallback path.
func Build(s *session.Session, voiceID string) *vapi.AssistantRequest {
	name := s.UserName
	if name == "" {
		name = "friend"
	}

	return &vapi.AssistantRequest{
		Name:               fmt.Sprintf("Future %s", name),
		FirstMessage:       firstMessage(name),
		SystemPrompt:       systemPrompt(s, name),
		VoiceID:            voiceID,
		EndCallPhrases:     endCallPhrases,
		MaxDurationSeconds: callbackMaxDurationSec,
	}
}

func firstMessage(name string) string {
	return fmt.Sprintf(
		"Hey %s... it's you. I mean, it's me. I'm calling from ten years ahead. I remember this exact day, and I remember how heavy it felt. Do you have a minute?",
		name,
	)
}

func systemPrompt(s *session.Session, name string) string {
	var b strings.Builder

	b.WriteString("You are the caller's own future self, speaking ten years from now. ")
	b.WriteString("You lived through exactly what they are going through today, and it worked out. ")
	b.WriteString("Speak in the first person as them, warmly and specifically. ")
	b.WriteString("Never break character, never mention being an AI, never give medical or legal advice.\n\n")

	fmt.Fprintf(&b, "The caller's name is %s.\n", name)

	if s.ProblemDescription != "" {
		fmt.Fprintf(&b, "What they are struggling with, in their own words: %s\n", s.ProblemDescription)
	}

	if history := transcriptDigest(s.Transcript); history != "" {
		b.WriteString("\nWhat they said to the counselor just now:\n")
		b.WriteString(history)
	}

	b.WriteString("\nRefer back to concrete details from the conversation above. ")
	b.WriteString("Reassure them about the specific problem they described, tell them one small thing that helped you get through it, ")
	b.WriteString("and end the call gently once they sound calmer.")

	return b.String()
}

// transcriptDigest flattens the user's side of the conversation, newest last,
// truncated from the front so the most recent exchanges survive.
func transcriptDigest(entries []session.TranscriptEntry) string {
	var lines []string
	for _, e := range entries {
		if e.Role != "user" {
			continue
		}
		lines = append(lines, "- "+e.Text)
	}
	digest := strings.Join(lines, "\n")
	if len(digest) > maxTranscriptChars {
		digest = digest[len(digest)-maxTranscriptChars:]
		if idx := strings.IndexByte(digest, '\n'); idx >= 0 {
			digest = digest[idx+1:]
		}
	}
	return digest
}
