package pipeline

import "strconv"

// UpdateKind selects which presentation field an update changes
type UpdateKind int

const (
	UpdateStatus UpdateKind = iota
	UpdateTranscript
	UpdateReply
	UpdateEnable // the trigger is available again
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateStatus:
		return "status"
	case UpdateTranscript:
		return "transcript"
	case UpdateReply:
		return "reply"
	case UpdateEnable:
		return "enable"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText encodes the kind by name
func (k UpdateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StatusUpdate is a value message from the pipeline to a presentation
// adapter. It holds no references into the interaction.
type StatusUpdate struct {
	Kind          UpdateKind `json:"kind"`
	Payload       string     `json:"payload"`
	InteractionID string     `json:"interaction_id"`
	State         string     `json:"state"`
}

// Publish delivers one update. Implementations must not retain it by
// reference to pipeline state.
type Publish func(StatusUpdate)

// Discard is a Publish that drops every update
func Discard(StatusUpdate) {}
