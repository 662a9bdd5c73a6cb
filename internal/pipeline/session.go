package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/observability"
)

// DefaultUpdateBuffer is the capacity of the session update channel
const DefaultUpdateBuffer = 128

// ErrInteractionInFlight is returned by Trigger while an interaction is
// still running.
var ErrInteractionInFlight = errors.New("an interaction is already in flight")

// Session runs interactions one at a time for an interactive front end.
// Each trigger starts a single worker goroutine; progress arrives in order
// on one buffered channel that the front end drains without blocking.
type Session struct {
	orch     *Orchestrator
	recorder *audio.Recorder
	ctx      context.Context
	updates  chan StatusUpdate

	mu      sync.Mutex
	current string // id of the newest interaction
	state   State
	capture *audio.CaptureSession
	last    *Interaction
	wg      sync.WaitGroup
}

// NewSession creates a session that records from recorder. Cancelling ctx
// stops any recording in progress and unblocks the worker.
func NewSession(ctx context.Context, orch *Orchestrator, recorder *audio.Recorder) *Session {
	return &Session{
		orch:     orch,
		recorder: recorder,
		ctx:      ctx,
		updates:  make(chan StatusUpdate, DefaultUpdateBuffer),
		state:    Idle,
	}
}

// Trigger starts a new interaction and begins recording at once. It never
// blocks on the pipeline. A trigger while one is in flight is rejected
// with ErrInteractionInFlight.
func (s *Session) Trigger() (string, error) {
	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		observability.RecordRejectedTrigger()
		return "", ErrInteractionInFlight
	}

	ia := newInteraction(s.orch.now())
	s.current = ia.ID
	s.state = Recording
	cs, beginErr := s.recorder.BeginCapture()
	s.capture = cs
	s.wg.Add(1)
	s.mu.Unlock()

	capture := func(ctx context.Context) (audio.Blob, error) {
		if beginErr != nil {
			return audio.Blob{}, beginErr
		}
		return s.recorder.AwaitCapture(ctx, cs)
	}

	go s.work(ia, capture)
	return ia.ID, nil
}

func (s *Session) work(ia *Interaction, capture captureFunc) {
	defer s.wg.Done()

	publish := func(u StatusUpdate) {
		if st, ok := stateByName[u.State]; ok && u.Kind == UpdateStatus {
			s.setState(ia.ID, st)
		}
		select {
		case s.updates <- u:
		case <-s.ctx.Done():
		}
	}

	final, _ := s.orch.run(s.ctx, ia, VariantInteractive, capture, publish)

	s.mu.Lock()
	s.last = &final
	if s.current == ia.ID {
		s.capture = nil
		s.state = Idle
	}
	s.mu.Unlock()
}

// setState records the state of interaction id unless a newer one has
// already been triggered.
func (s *Session) setState(id string, st State) {
	s.mu.Lock()
	if s.current == id {
		s.state = st
		if st != Recording {
			s.capture = nil
		}
	}
	s.mu.Unlock()
}

// StopRecording ends the current recording. A stop before the minimum
// duration is padded to the minimum. Without a recording it does nothing.
func (s *Session) StopRecording() {
	s.mu.Lock()
	cs := s.capture
	s.mu.Unlock()
	if cs != nil {
		cs.Stop()
	}
}

// State returns the state of the interaction in flight, or Idle
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return Idle
	}
	return s.state
}

// InFlight reports whether a trigger would be rejected
func (s *Session) InFlight() bool {
	return s.State().InFlight()
}

// Last returns a copy of the most recently finished interaction
func (s *Session) Last() (Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Interaction{}, false
	}
	return *s.last, true
}

// Updates returns the channel carrying every published update in order
func (s *Session) Updates() <-chan StatusUpdate {
	return s.updates
}

// Drain returns the updates queued so far without waiting for more
func (s *Session) Drain() []StatusUpdate {
	var out []StatusUpdate
	for {
		select {
		case u := <-s.updates:
			out = append(out, u)
		default:
			return out
		}
	}
}

// Wait blocks until the current worker, if any, has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

var stateByName = map[string]State{
	Idle.String():         Idle,
	Recording.String():    Recording,
	Transcribing.String(): Transcribing,
	Responding.String():   Responding,
	Speaking.String():     Speaking,
	Spoken.String():       Spoken,
	Failed.String():       Failed,
}
