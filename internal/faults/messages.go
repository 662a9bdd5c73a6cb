package faults

import "errors"

// User-facing texts. They are spoken or displayed, so keep them short.
const (
	MsgNoAudio           = "No audio file provided"
	MsgServerKeyMissing  = "Server API key is missing."
	MsgNoSpeech          = "No clear speech detected."
	ReplyDidNotCatch     = "I didn't quite catch that. Could you please speak up?"
	ReplyKeyMissing      = "Sorry, I can't talk right now. My API key is missing on the server."
	ReplyCannotConnect   = "I'm having trouble connecting to my brain right now. Please try again."
	ReplyTooSlow         = "My brain took too long to answer. Please try again."
	ReplyUnreadable      = "The chat service is responding, but I can't understand its reply format."
	ReplySomethingBroke  = "Something went wrong while I was thinking. Please try again."
	msgMicUnavailable    = "Microphone unavailable. Check permissions or close other apps using it."
	msgTranscribeOffline = "I couldn't reach the transcription service. Please try again."
	msgTranscribeTimeout = "The transcription service took too long to answer."
	msgTranscribeGarbled = "The transcription service returned an unreadable response."
	msgInternal          = "An internal server error occurred."
	msgRecordingTooShort = "The recording was too short. Please hold the button while you speak."
)

// ErrTooShort is returned when a capture produced no audio at all.
var ErrTooShort = errors.New("recording too short")

// Apology returns the reply spoken in place of a failed chat response.
// It is never empty.
func Apology(err error) string {
	switch KindOf(err) {
	case Unauthorized:
		return ReplyKeyMissing
	case NetworkFailure:
		return ReplyCannotConnect
	case Timeout:
		return ReplyTooSlow
	case MalformedResponse:
		return ReplyUnreadable
	default:
		return ReplySomethingBroke
	}
}

// Message returns the user-legible text for a terminal pipeline failure.
// It never includes the underlying error text.
func Message(err error) string {
	if errors.Is(err, ErrTooShort) {
		return msgRecordingTooShort
	}

	switch KindOf(err) {
	case DeviceUnavailable:
		return msgMicUnavailable
	case Unauthorized:
		return MsgServerKeyMissing
	case NetworkFailure:
		return msgTranscribeOffline
	case Timeout:
		return msgTranscribeTimeout
	case MalformedResponse:
		return msgTranscribeGarbled
	default:
		return msgInternal
	}
}
