package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("4")).
			Padding(0, 1)
)

func (m Model) View() string {
	inner := m.width - 4
	if inner < 20 {
		inner = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.character) + " - Voice Character\n\n")

	status := m.status
	if !m.enabled {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(statusStyle.Render(wordwrap.String(status, inner)) + "\n\n")

	b.WriteString(labelStyle.Render("You said:") + "\n")
	b.WriteString(wordwrap.String(m.transcript, inner) + "\n\n")

	b.WriteString(labelStyle.Render(m.character+" responds:") + "\n")
	b.WriteString(replyStyle.Render(wordwrap.String(m.reply, inner)) + "\n\n")

	hint := "space: talk  q: quit"
	if !m.enabled {
		hint = "space: stop recording  q: quit"
	}
	b.WriteString(hintStyle.Render(hint))

	return boxStyle.Width(inner).Render(b.String()) + "\n"
}
