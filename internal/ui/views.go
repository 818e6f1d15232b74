package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D3CFF"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	meterBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D3CFF")).
			Padding(0, 1).
			Width(58)

	tempoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00C2C2")).
			Padding(0, 1).
			Width(58)

	beatOnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD200"))
	beatOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	deadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
)

// View renders the live monitor.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Beatcore ♪ live monitor"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%.1fs", m.ElapsedSec)))
	if !m.Latest.Alive {
		b.WriteString("  ")
		b.WriteString(deadStyle.Render("NO AUDIO"))
	}
	b.WriteString("\n\n")

	b.WriteString(renderMeters(m))
	b.WriteString("\n")
	b.WriteString(renderTempo(m))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	b.WriteString("\n")

	return b.String()
}

// renderMeters renders the audio level meters.
func renderMeters(m Model) string {
	c := m.Latest
	var content strings.Builder

	content.WriteString(fmt.Sprintf("level     %s\n", renderBar(float64(c.Level), 40)))
	content.WriteString(fmt.Sprintf("raw       %s\n", renderBar(float64(c.Raw), 40)))
	content.WriteString(fmt.Sprintf("transient %s\n", renderBar(float64(c.Transient), 40)))
	content.WriteString(fmt.Sprintf("pulse     %s\n", renderBar(float64(c.Pulse), 40)))
	content.WriteString(fmt.Sprintf("hw gain   %d/80", c.HWGain))

	return meterBoxStyle.Render(content.String())
}

// renderTempo renders the beat tracker state.
func renderTempo(m Model) string {
	c := m.Latest
	var content strings.Builder

	beat := beatOffStyle.Render("○")
	if m.beatFlash > 0 {
		beat = beatOnStyle.Render("●")
	}
	bar := beatOffStyle.Render("□")
	if m.wholeFlash > 0 {
		bar = beatOnStyle.Render("■")
	}

	state := "searching"
	if c.Active {
		state = "locked"
	}

	content.WriteString(fmt.Sprintf("%s %s  %6.1f BPM  %s\n", beat, bar, c.BPM, dimStyle.Render(state)))
	content.WriteString(fmt.Sprintf("phase      %s\n", renderBar(float64(c.Phase), 40)))
	content.WriteString(fmt.Sprintf("confidence %s", renderBar(float64(c.Confidence), 40)))

	return tempoBoxStyle.Render(content.String())
}

// renderBar renders a horizontal meter.
func renderBar(value float64, width int) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
