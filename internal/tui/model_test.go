package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexiqai/voice-character/internal/pipeline"
)

type fakeSession struct {
	state    pipeline.State
	queued   []pipeline.StatusUpdate
	triggers int
	stops    int
	err      error
}

func (f *fakeSession) Trigger() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.triggers++
	f.state = pipeline.Recording
	return "ia-1", nil
}

func (f *fakeSession) StopRecording()         { f.stops++ }
func (f *fakeSession) State() pipeline.State  { return f.state }
func (f *fakeSession) Drain() []pipeline.StatusUpdate {
	out := f.queued
	f.queued = nil
	return out
}

func space() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Expected Model, got %T", next)
	}
	return model, cmd
}

func TestModel_SpaceTriggersThenStops(t *testing.T) {
	s := &fakeSession{state: pipeline.Idle}
	m := New(s, "Ursy")

	m, _ = step(t, m, space())
	if s.triggers != 1 {
		t.Fatalf("Expected one trigger, got %d", s.triggers)
	}
	if m.enabled {
		t.Error("Expected the trigger to be disabled while in flight")
	}

	m, _ = step(t, m, space())
	if s.stops != 1 {
		t.Errorf("Expected the second press to stop recording, got %d stops", s.stops)
	}

	s.state = pipeline.Responding
	step(t, m, space())
	if s.triggers != 1 {
		t.Errorf("Expected no trigger while disabled, got %d", s.triggers)
	}
}

func TestModel_InFlightRejection(t *testing.T) {
	s := &fakeSession{state: pipeline.Idle, err: pipeline.ErrInteractionInFlight}
	m := New(s, "Ursy")

	m, _ = step(t, m, space())
	if !m.enabled {
		t.Error("Expected the trigger to stay enabled after a rejection")
	}
	if !strings.Contains(m.status, "still answering") {
		t.Errorf("Unexpected status %q", m.status)
	}
}

func TestModel_DrainAppliesUpdates(t *testing.T) {
	s := &fakeSession{state: pipeline.Idle}
	m := New(s, "Ursy")
	m, _ = step(t, m, space())

	s.queued = []pipeline.StatusUpdate{
		{Kind: pipeline.UpdateStatus, Payload: pipeline.StatusThinking},
		{Kind: pipeline.UpdateTranscript, Payload: "hello"},
		{Kind: pipeline.UpdateReply, Payload: "hi there"},
	}
	m, cmd := step(t, m, drainMsg(time.Now()))
	if cmd == nil {
		t.Error("Expected the drain tick to be rescheduled")
	}
	if m.status != pipeline.StatusThinking || m.transcript != "hello" || m.reply != "hi there" {
		t.Errorf("Unexpected fields %q/%q/%q", m.status, m.transcript, m.reply)
	}
	if m.enabled {
		t.Error("Expected the trigger to stay disabled until Enable")
	}

	s.queued = []pipeline.StatusUpdate{
		{Kind: pipeline.UpdateStatus, Payload: pipeline.StatusComplete},
		{Kind: pipeline.UpdateEnable},
	}
	m, _ = step(t, m, drainMsg(time.Now()))
	if !m.enabled {
		t.Error("Expected Enable to re-enable the trigger")
	}
	if !strings.Contains(m.status, "Press space") {
		t.Errorf("Expected a terminal hint, got %q", m.status)
	}

	view := m.View()
	for _, want := range []string{"Ursy", "hello", "hi there"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestModel_Quit(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := step(t, New(&fakeSession{}, "Ursy"), key)
		if cmd == nil {
			t.Fatalf("Expected a quit command for %q", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("Expected QuitMsg for %q", key.String())
		}
	}
}

func TestModel_WrapsToWindow(t *testing.T) {
	m := New(&fakeSession{}, "Ursy")
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 30, Height: 20})
	m.reply = strings.Repeat("word ", 20)

	for _, line := range strings.Split(m.View(), "\n") {
		if w := len([]rune(stripANSI(line))); w > 30 {
			t.Errorf("Line wider than the window (%d): %q", w, line)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
