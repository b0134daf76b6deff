package tui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
)

// progressInterval throttles progress messages sent to the terminal
const progressInterval = 100 * time.Millisecond

// receivedStep is how many bytes PlainObserver waits between lines when the
// total is unknown
const receivedStep = 1_000_000

// FetchFunc runs the request, reporting to observer, and returns where the
// artifact was delivered
type FetchFunc func(ctx context.Context, observer app.Observer) (string, error)

// Run drives fetch behind the progress view until it finishes
func Run(ctx context.Context, url string, kind domain.RequestKind, fetch FetchFunc, opts ...tea.ProgramOption) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(url, kind, cancel), opts...)

	go func() {
		location, err := fetch(ctx, programObserver(p.Send))
		p.Send(doneMsg{location: location, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("terminal UI failed: %w", err)
	}
	m := final.(Model)
	return m.Location(), m.Err()
}

// programObserver forwards pipeline events as messages. Progress is
// throttled except for the final report.
func programObserver(send func(tea.Msg)) app.Observer {
	var mu sync.Mutex
	var last time.Time

	return app.ObserverFuncs{
		State: func(state domain.RequestState) {
			send(stateMsg(state))
		},
		MediaInfo: func(info *domain.MediaInfo) {
			send(infoMsg{title: info.Title, length: info.LengthLabel()})
		},
		Progress: func(p domain.Progress) {
			mu.Lock()
			now := time.Now()
			final := p.Total > 0 && p.Transferred >= p.Total
			if !final && now.Sub(last) < progressInterval {
				mu.Unlock()
				return
			}
			last = now
			mu.Unlock()
			send(progressMsg(p))
		},
	}
}

// PlainObserver prints state changes and coarse progress as lines, for
// terminals without TUI support
func PlainObserver(w io.Writer) app.Observer {
	lastDecile := -1
	lastStep := int64(-1)
	return app.ObserverFuncs{
		State: func(state domain.RequestState) {
			fmt.Fprintf(w, "state: %s\n", state)
		},
		MediaInfo: func(info *domain.MediaInfo) {
			fmt.Fprintf(w, "title: %s\nlength: %s\n", info.Title, info.LengthLabel())
		},
		Progress: func(p domain.Progress) {
			if p.Indeterminate() {
				step := p.Transferred / receivedStep
				if step == lastStep {
					return
				}
				lastStep = step
				fmt.Fprintf(w, "received: %s\n", humanize.Bytes(uint64(p.Transferred)))
				return
			}
			decile := int(p.Transferred * 10 / p.Total)
			if decile == lastDecile {
				return
			}
			lastDecile = decile
			fmt.Fprintf(w, "progress: %d%% (%s / %s)\n", decile*10,
				humanize.Bytes(uint64(p.Transferred)), humanize.Bytes(uint64(p.Total)))
		},
	}
}
