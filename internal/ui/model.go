// Package ui provides the Bubbletea terminal user interface: a one-screen
// live view of the control signal while beatcore listens.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/luminode/beatcore/internal/engine"
)

// beatFlashFrames is how many frames the beat marker stays lit after a beat.
const beatFlashFrames = 6

// Model is the Bubbletea model for the live monitor.
type Model struct {
	// Channel for receiving control snapshots from the frame loop
	Ctrl chan tea.Msg

	Latest     engine.Control
	ElapsedSec float64

	// Countdown renderers for the one-shot flags, which only last a frame
	beatFlash  int
	wholeFlash int

	Done bool
	Err  error

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a live monitor model. The frame loop sends ControlMsg
// values into the returned model's Ctrl channel; waitForControl hands them
// to Update one at a time.
func NewModel() Model {
	return Model{
		Ctrl: make(chan tea.Msg, 100), // Buffered channel
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForControl(m.Ctrl)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case ControlMsg:
		m.Latest = msg.Ctrl
		m.ElapsedSec = msg.ElapsedSec
		if msg.Ctrl.Beat {
			m.beatFlash = beatFlashFrames
		} else if m.beatFlash > 0 {
			m.beatFlash--
		}
		if msg.Ctrl.Whole {
			m.wholeFlash = beatFlashFrames * 2
		} else if m.wholeFlash > 0 {
			m.wholeFlash--
		}
		return m, waitForControl(m.Ctrl)

	case StoppedMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// waitForControl returns a command that waits for the next snapshot.
func waitForControl(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
