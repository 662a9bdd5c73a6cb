package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/lexiqai/voice-character/internal/audio"
)

// Interaction is one trigger-to-terminal cycle. Only the Orchestrator
// mutates it; callers receive copies.
type Interaction struct {
	ID            string
	State         State
	CapturedAudio audio.Blob
	Transcript    string
	ReplyText     string
	NoSpeech      bool  // ASR recognized nothing; the canned reply was used
	Err           error // terminal failure, or the chat fault behind an apology
	StartedAt     time.Time
	EndedAt       time.Time
}

func newInteraction(now time.Time) *Interaction {
	return &Interaction{
		ID:        uuid.New().String(),
		State:     Idle,
		StartedAt: now,
	}
}

// Duration returns how long the interaction took, or zero while in flight
func (ia Interaction) Duration() time.Duration {
	if ia.EndedAt.IsZero() {
		return 0
	}
	return ia.EndedAt.Sub(ia.StartedAt)
}
