package session

import (
	"time"
)

// Status is the coarse lifecycle of a counseling interaction.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusCounseling   Status = "counseling"
	StatusProcessing   Status = "processing"
	StatusCallingBack  Status = "calling_back"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// CallState is the finer-grained progression the scheduler drives.
type CallState string

const (
	StateOnboarding            CallState = "onboarding"
	StatePreparingInterruption CallState = "preparing_interruption"
	StateInterruptionDelivered CallState = "interruption_delivered"
	StateReadyForFutureCall    CallState = "ready_for_future_call"
)

// TranscriptEntry is one utterance from either side of the call.
type TranscriptEntry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session holds all per-interaction state. Instances handed out by the store
// are snapshots; mutation goes through Store.Update so read-modify-write is
// atomic even when webhook handlers, the capture pipeline, and scheduler
// timers interleave.
type Session struct {
	ID        string
	CallID    string
	Status    Status
	CallState CallState

	UserName           string
	ProblemDescription string
	CallbackNumber     string

	Transcript []TranscriptEntry

	CloneInFlight bool
	CloneReady    bool
	VoiceID       string

	FutureSelfCreated bool
	AssistantID       string

	CreatedAt time.Time
	EndedAt   time.Time
}

// AppendTranscript adds an entry unless the exact (role, text) pair is already
// present. The platform redelivers conversation snapshots, so duplicates are
// the norm rather than the exception.
func (s *Session) AppendTranscript(role, text string, at time.Time) bool {
	for _, e := range s.Transcript {
		if e.Role == role && e.Text == text {
			return false
		}
	}
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text, At: at})
	return true
}

// SetUserName records the name once; later matches are ignored.
func (s *Session) SetUserName(name string) bool {
	if s.UserName != "" || name == "" {
		return false
	}
	s.UserName = name
	return true
}

// SetProblemDescription records the problem description once.
func (s *Session) SetProblemDescription(desc string) bool {
	if s.ProblemDescription != "" || desc == "" {
		return false
	}
	s.ProblemDescription = desc
	return true
}

// ElapsedSeconds reports wall-clock time since the session was created.
func (s *Session) ElapsedSeconds() int {
	return int(time.Since(s.CreatedAt).Seconds())
}

func (s *Session) snapshot() *Session {
	cp := *s
	cp.Transcript = make([]TranscriptEntry, len(s.Transcript))
	copy(cp.Transcript, s.Transcript)
	return &cp
}
