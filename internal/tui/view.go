package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// Styles with adaptive colors for light/dark backgrounds
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})
)

// View renders the current state
func (m Model) View() string {
	var b strings.Builder

	heading := m.url
	if m.title != "" {
		heading = m.title
	}
	b.WriteString(titleStyle.Render(heading))
	if m.length != "" {
		b.WriteString(helpStyle.Render("  " + m.length))
	}
	b.WriteString("\n\n")

	if m.done {
		b.WriteString(m.outcome())
		b.WriteString("\n")
		return b.String()
	}

	if m.state == domain.StateTransferring {
		if pct, ok := m.percent(); ok {
			b.WriteString(m.bar.ViewAs(pct))
			b.WriteString(fmt.Sprintf("  %s / %s", humanize.Bytes(uint64(m.transferred)), humanize.Bytes(uint64(m.total))))
		} else {
			b.WriteString(m.spinner.View())
			b.WriteString(" " + humanize.Bytes(uint64(m.transferred)))
		}
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" " + stateLabel(m.state, m.kind))
	}
	b.WriteString("\n\n")

	if m.cancelling {
		b.WriteString(helpStyle.Render("Cancelling..."))
	} else {
		b.WriteString(helpStyle.Render("ctrl+c: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) outcome() string {
	if m.err == nil {
		return successStyle.Render("Saved to " + m.location)
	}
	kind, ok := domain.KindOf(m.err)
	if !ok {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if kind.IsNotice() {
		return helpStyle.Render(kind.UserMessage())
	}
	return errorStyle.Render(kind.UserMessage())
}

func stateLabel(state domain.RequestState, kind domain.RequestKind) string {
	switch state {
	case domain.StateRequested, domain.StateResolving:
		return "Resolving link..."
	case domain.StateTranscoding:
		return "Converting to audio..."
	case domain.StateCaptionExtracting:
		return "Extracting captions..."
	case domain.StateAssembling:
		return "Preparing " + string(kind) + "..."
	default:
		return string(state)
	}
}
