// Package pipeline runs one voice interaction from recording to spoken
// reply and publishes its progress as status updates.
package pipeline

// State is the position of an interaction in the pipeline
type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Responding
	Speaking
	Spoken
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Responding:
		return "responding"
	case Speaking:
		return "speaking"
	case Spoken:
		return "spoken"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further stage follows s
func (s State) Terminal() bool {
	return s == Spoken || s == Failed
}

// InFlight reports whether an interaction in s blocks a new trigger
func (s State) InFlight() bool {
	return s != Idle && !s.Terminal()
}

// Status texts published on each transition
const (
	StatusReady        = "Click the button to talk to me!"
	StatusListening    = "Listening..."
	StatusTranscribing = "Transcribing..."
	StatusThinking     = "Thinking..."
	StatusSpeaking     = "Speaking..."
	StatusComplete     = "Conversation complete. Click the button to talk again!"
)

func statusText(s State) string {
	switch s {
	case Recording:
		return StatusListening
	case Transcribing:
		return StatusTranscribing
	case Responding:
		return StatusThinking
	case Speaking:
		return StatusSpeaking
	case Spoken:
		return StatusComplete
	}
	return StatusReady
}
