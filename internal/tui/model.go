// Package tui is the terminal front end of the interactive variant. The
// bubbletea update loop is the only code that touches presentation state;
// pipeline progress reaches it through Session.Drain on a short tick.
package tui

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexiqai/voice-character/internal/pipeline"
)

// DrainInterval is how often queued pipeline updates are applied
const DrainInterval = 50 * time.Millisecond

// Session is the part of pipeline.Session the UI drives
type Session interface {
	Trigger() (string, error)
	StopRecording()
	State() pipeline.State
	Drain() []pipeline.StatusUpdate
}

type drainMsg time.Time

// Model is the bubbletea model of the character screen
type Model struct {
	session   Session
	character string
	spinner   spinner.Model

	status     string
	transcript string
	reply      string
	enabled    bool
	width      int
}

// New creates the model for session
func New(session Session, character string) Model {
	return Model{
		session:   session,
		character: character,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		status:    "Press space to talk to me!",
		enabled:   true,
		width:     72,
	}
}

func drainTick() tea.Cmd {
	return tea.Tick(DrainInterval, func(t time.Time) tea.Msg { return drainMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, drainTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case drainMsg:
		for _, u := range m.session.Drain() {
			m = m.apply(u)
		}
		return m, drainTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case " ", "enter":
		if m.session.State() == pipeline.Recording {
			m.session.StopRecording()
			return m, nil
		}
		if !m.enabled {
			return m, nil
		}
		if _, err := m.session.Trigger(); err != nil {
			if errors.Is(err, pipeline.ErrInteractionInFlight) {
				m.status = "Hold on, I'm still answering."
			}
			return m, nil
		}
		m.enabled = false
		m.transcript = ""
		m.reply = ""
	}
	return m, nil
}

// apply copies one update into the presentation fields
func (m Model) apply(u pipeline.StatusUpdate) Model {
	switch u.Kind {
	case pipeline.UpdateStatus:
		m.status = u.Payload
		if u.Payload == pipeline.StatusListening {
			m.status = "Listening... press space to stop."
		}
	case pipeline.UpdateTranscript:
		m.transcript = u.Payload
	case pipeline.UpdateReply:
		m.reply = u.Payload
	case pipeline.UpdateEnable:
		m.enabled = true
		if m.status == pipeline.StatusComplete {
			m.status = "Conversation complete. Press space to talk again!"
		}
	}
	return m
}
