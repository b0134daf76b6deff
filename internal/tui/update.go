package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && !m.done && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > maxBarWidth {
			width = maxBarWidth
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil

	case stateMsg:
		m.state = domain.RequestState(msg)
		return m, nil

	case infoMsg:
		m.title = msg.title
		m.length = msg.length
		return m, nil

	case progressMsg:
		m.transferred = msg.Transferred
		m.total = msg.Total
		return m, nil

	case doneMsg:
		m.done = true
		m.location = msg.location
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}
