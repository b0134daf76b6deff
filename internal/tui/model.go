package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

const maxBarWidth = 60

// Messages sent by the running pipeline
type (
	stateMsg    domain.RequestState
	progressMsg domain.Progress
	infoMsg     struct {
		title  string
		length string
	}
	doneMsg struct {
		location string
		err      error
	}
)

// Model is the Bubbletea model for a single fetch
type Model struct {
	// Request
	url  string
	kind domain.RequestKind

	// Pipeline state
	state       domain.RequestState
	title       string
	length      string
	transferred int64
	total       int64

	// Outcome
	done     bool
	location string
	err      error

	// Cancellation
	cancel     context.CancelFunc
	cancelling bool

	// Components
	bar     progress.Model
	spinner spinner.Model
}

// NewModel creates a model for one request. cancel is called when the user
// interrupts; the model keeps running until the pipeline reports back.
func NewModel(url string, kind domain.RequestKind, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		url:     url,
		kind:    kind,
		state:   domain.StateRequested,
		cancel:  cancel,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Location returns where the artifact was delivered
func (m Model) Location() string {
	return m.location
}

// Err returns the error the request ended with
func (m Model) Err() error {
	return m.err
}

// percent returns the completed fraction, or false when the total is unknown
func (m Model) percent() (float64, bool) {
	if m.total <= 0 {
		return 0, false
	}
	p := float64(m.transferred) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p, true
}
