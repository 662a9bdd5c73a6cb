// Package audio captures bounded voice recordings and frames them for the
// transcription stage.
package audio

import (
	"time"
)

// Format describes linear PCM audio
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is 16 kHz mono 16-bit PCM, the format the microphone records in
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
}

// BytesPerFrame returns the size of one sample across all channels
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Duration returns the playback length of n bytes of PCM in this format
func (f Format) Duration(n int) time.Duration {
	bpf := f.BytesPerFrame()
	if bpf == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := n / bpf
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Blob is a finished recording handed to the transcription stage.
// It is never modified after it is created.
type Blob struct {
	Data     []byte
	Format   Format
	MIMEType string
	Filename string
	Duration time.Duration
}

// Empty reports whether the blob carries no audio
func (b Blob) Empty() bool {
	return len(b.Data) == 0
}
