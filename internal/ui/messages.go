package ui

import "github.com/luminode/beatcore/internal/engine"

// ControlMsg carries one frame's control snapshot from the frame loop.
type ControlMsg struct {
	Ctrl       engine.Control
	ElapsedSec float64
}

// StoppedMsg signals that the frame loop has ended.
type StoppedMsg struct {
	Err error
}
