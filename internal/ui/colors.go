package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorCreated = lipgloss.Color("#04B575")
	colorFailed  = lipgloss.Color("#FF0000")
	colorSkipped = lipgloss.Color("#FFA500")
	colorMuted   = lipgloss.Color("#626262")
)

var styles = newPalette()

// struct palette holds the styles for entry status output, shared by the TUI and plain CLI output
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

func newPalette() *palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &palette{
		title: fg(colorAccent).Bold(true).MarginBottom(1),
		ok:    fg(colorCreated).Bold(true),
		err:   fg(colorFailed).Bold(true),
		warn:  fg(colorSkipped),
		help:  fg(colorMuted).Italic(true),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1),
	}
}

// Success renders s in the created-entry style.
func Success(s string) string { return styles.ok.Render(s) }

// Failure renders s in the failed-entry style.
func Failure(s string) string { return styles.err.Render(s) }

// Warning renders s in the style used for skipped frames and other non-fatal problems.
func Warning(s string) string { return styles.warn.Render(s) }

// Muted renders s for secondary details such as timestamps and intermediate steps.
func Muted(s string) string { return styles.help.Render(s) }
