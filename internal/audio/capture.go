package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
)

const (
	DefaultMinDuration = 500 * time.Millisecond
	DefaultMaxDuration = 5000 * time.Millisecond
)

// ErrDeviceBusy is returned when a capture is started while another one
// still holds the device.
var ErrDeviceBusy = errors.New("capture device is already in use")

// Device is an audio input that can be held by one capture at a time
type Device interface {
	// Open starts delivering PCM in format to onData until the stream is closed.
	// onData may be called from a device thread and must not block.
	Open(format Format, onData func(pcm []byte)) (Stream, error)
}

// Stream is an open device handle
type Stream interface {
	Close() error
}

// StopReason tells why a capture ended
type StopReason int

const (
	StopRequested StopReason = iota
	StopMaxDuration
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopMaxDuration:
		return "max_duration"
	case StopCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Recorder produces bounded recordings from a Device
type Recorder struct {
	device      Device
	clock       Clock
	format      Format
	minDuration time.Duration
	maxDuration time.Duration
	vad         *VADConfig

	mu     sync.Mutex
	active *CaptureSession
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithClock sets the time source used for the duration limits
func WithClock(c Clock) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithMinDuration sets the shortest recording; 0 disables the guard
func WithMinDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.minDuration = d }
}

// WithMaxDuration sets the longest recording; 0 disables the limit
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.maxDuration = d }
}

// WithFormat sets the PCM format requested from the device
func WithFormat(f Format) RecorderOption {
	return func(r *Recorder) { r.format = f }
}

// WithVAD sets the energy detector used for the speech summary
func WithVAD(cfg *VADConfig) RecorderOption {
	return func(r *Recorder) { r.vad = cfg }
}

// NewRecorder creates a recorder with 500 ms / 5000 ms limits by default
func NewRecorder(device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device:      device,
		clock:       SystemClock(),
		format:      DefaultFormat(),
		minDuration: DefaultMinDuration,
		maxDuration: DefaultMaxDuration,
		vad:         DefaultVADConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginCapture takes the device and starts recording immediately.
// The recording ends by itself once the maximum duration has elapsed.
func (r *Recorder) BeginCapture() (*CaptureSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, faults.New(faults.DeviceUnavailable, "capture", ErrDeviceBusy)
	}
	if r.device == nil {
		return nil, faults.Newf(faults.DeviceUnavailable, "capture", "no input device configured")
	}

	s := &CaptureSession{
		recorder:  r,
		startedAt: r.clock.Now(),
		done:      make(chan struct{}),
	}

	stream, err := r.device.Open(r.format, s.append)
	if err != nil {
		return nil, faults.New(faults.DeviceUnavailable, "capture", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	r.active = s

	if r.maxDuration > 0 {
		t := r.clock.AfterFunc(r.maxDuration, func() { s.finish(StopMaxDuration) })
		s.mu.Lock()
		s.maxTimer = t
		s.mu.Unlock()
	}

	return s, nil
}

// EndCapture requests a stop and waits for the recording.
// A stop before the minimum duration is padded to exactly the minimum.
func (r *Recorder) EndCapture(ctx context.Context, s *CaptureSession) (Blob, error) {
	s.Stop()
	return r.AwaitCapture(ctx, s)
}

// AwaitCapture waits until s ends on its own or by Stop and returns the
// recording. If ctx is done first the device is released and ctx's error
// is returned.
func (r *Recorder) AwaitCapture(ctx context.Context, s *CaptureSession) (Blob, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.finish(StopCancelled)
		return Blob{}, fmt.Errorf("capture: %w", ctx.Err())
	}
	return r.collect(s)
}

// Active reports whether a capture currently holds the device
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Recorder) release(s *CaptureSession) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

func (r *Recorder) collect(s *CaptureSession) (Blob, error) {
	s.mu.Lock()
	pcm := s.frames
	length := s.endedAt.Sub(s.startedAt)
	reason := s.reason
	s.mu.Unlock()

	logger := observability.WithComponent("capture")

	if bpf := r.format.BytesPerFrame(); bpf > 0 {
		pcm = pcm[:len(pcm)-len(pcm)%bpf]
	}
	if len(pcm) == 0 {
		logger.Warn().Dur("length", length).Str("reason", reason.String()).Msg("Capture produced no audio")
		return Blob{}, faults.ErrTooShort
	}

	var summary SpeechSummary
	if r.format.BitDepth == 16 {
		if samples, err := BytesToSamples(pcm); err == nil {
			summary = Summarize(samples, r.vad)
		}
	}
	observability.RecordCapture(length, summary.HasSpeech())
	observability.RecordAudioBytes("in", int64(len(pcm)))

	logger.Debug().
		Dur("length", length).
		Str("reason", reason.String()).
		Int("bytes", len(pcm)).
		Int("speech_frames", summary.SpeechFrames).
		Int("segments", summary.Segments).
		Float64("peak_rms", summary.PeakRMS).
		Msg("Capture finished")

	return Blob{
		Data:     EncodeWAV(pcm, r.format),
		Format:   r.format,
		MIMEType: WAVMIMEType,
		Filename: "recording.wav",
		Duration: length,
	}, nil
}

// CaptureSession is one recording in progress. Frames are appended only
// while it is open; after it ends the device is released and the frames
// are never modified again.
type CaptureSession struct {
	recorder  *Recorder
	startedAt time.Time
	done      chan struct{}

	mu            sync.Mutex
	frames        []byte
	stream        Stream
	stopRequested bool
	finished      bool
	endedAt       time.Time
	reason        StopReason
	maxTimer      Timer
	minTimer      Timer
}

// StartedAt returns when capture began
func (s *CaptureSession) StartedAt() time.Time {
	return s.startedAt
}

// Done is closed once the recording has ended and the device is released
func (s *CaptureSession) Done() <-chan struct{} {
	return s.done
}

// Length returns the recorded duration, or the elapsed time while open
func (s *CaptureSession) Length() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.endedAt.Sub(s.startedAt)
	}
	return s.recorder.clock.Now().Sub(s.startedAt)
}

// Reason returns why the recording ended
func (s *CaptureSession) Reason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Stop asks the recording to end. Before the minimum duration the stop is
// deferred until exactly the minimum. Repeated calls have no effect.
func (s *CaptureSession) Stop() {
	r := s.recorder

	s.mu.Lock()
	if s.finished || s.stopRequested {
		s.mu.Unlock()
		return
	}
	s.stopRequested = true
	remaining := r.minDuration - r.clock.Now().Sub(s.startedAt)
	s.mu.Unlock()

	if r.minDuration <= 0 || remaining <= 0 {
		s.finish(StopRequested)
		return
	}

	t := r.clock.AfterFunc(remaining, func() { s.finish(StopRequested) })
	s.mu.Lock()
	s.minTimer = t
	finished := s.finished
	s.mu.Unlock()
	if finished {
		t.Stop()
	}
}

// Abort ends the recording at once, ignoring the minimum duration
func (s *CaptureSession) Abort() {
	s.finish(StopCancelled)
}

func (s *CaptureSession) append(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.frames = append(s.frames, pcm...)
}

// finish runs once per session and always releases the device
func (s *CaptureSession) finish(reason StopReason) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.reason = reason
	s.endedAt = s.recorder.clock.Now()
	maxTimer, minTimer, stream := s.maxTimer, s.minTimer, s.stream
	s.mu.Unlock()

	if maxTimer != nil {
		maxTimer.Stop()
	}
	if minTimer != nil {
		minTimer.Stop()
	}

	if stream != nil {
		if err := stream.Close(); err != nil {
			logger := observability.WithComponent("capture")
			logger.Warn().Err(err).Msg("Failed to close input stream")
		}
	}

	s.recorder.release(s)
	close(s.done)
}
