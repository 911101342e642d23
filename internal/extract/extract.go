// Package extract pulls structured facts out of raw transcript utterances.
// Extractors are plain functions so the transport layer never needs to know
// how a fact is recognized, and each pattern can be unit tested in isolation.
package extract

import (
	"regexp"
	"strings"
)

// Fact is a single structured value recognized in an utterance.
type Fact struct {
	Kind  string
	Value string
}

// Extractor inspects one utterance and returns a fact, or ok=false.
type Extractor func(text string) (Fact, bool)

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is\s+([A-Za-z][A-Za-z'-]*)`),
	regexp.MustCompile(`(?i)\bi'?m\s+([A-Z][A-Za-z'-]*)\b`),
	regexp.MustCompile(`(?i)\bi am\s+([A-Z][A-Za-z'-]*)\b`),
	regexp.MustCompile(`(?i)\bcall me\s+([A-Za-z][A-Za-z'-]*)`),
}

// Words that follow "I'm ..." far more often than a name does. Keeps the
// looser patterns from capturing feelings as names.
var nameStopwords = map[string]bool{
	"good": true, "fine": true, "okay": true, "ok": true, "not": true,
	"so": true, "just": true, "really": true, "here": true, "sorry": true,
	"feeling": true, "trying": true, "struggling": true, "going": true,
	"sure": true, "a": true, "an": true, "the": true,
}

// Name returns the speaker's name from phrasings like "my name is X",
// "I'm X", "I am X", "call me X". Case-insensitive, first match wins.
func Name(text string) (Fact, bool) {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if candidate == "" || nameStopwords[strings.ToLower(candidate)] {
			continue
		}
		// Normalize to title case so "alice" and "ALICE" store identically
		candidate = strings.ToUpper(candidate[:1]) + strings.ToLower(candidate[1:])
		return Fact{Kind: "name", Value: candidate}, true
	}
	return Fact{}, false
}

// minProblemLength filters out backchannel ("yeah", "uh huh") so the first
// substantive utterance becomes the problem description.
const minProblemLength = 40

// Problem treats the first sufficiently long user utterance as the free-text
// problem description.
func Problem(text string) (Fact, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minProblemLength {
		return Fact{}, false
	}
	return Fact{Kind: "problem", Value: trimmed}, true
}
