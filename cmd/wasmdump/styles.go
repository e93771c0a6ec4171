package main

import "github.com/charmbracelet/lipgloss"

// Color palette shared by table output and the browser.
const (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorMuted     = lipgloss.Color("#666666")
	ColorSuccess   = lipgloss.Color("#90EE90")
	ColorError     = lipgloss.Color("#FF6B6B")
	ColorHighlight = lipgloss.Color("#87CEEB")
	ColorFunc      = lipgloss.Color("#98FB98")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorPrimary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	NumberStyle = CellStyle.
			Align(lipgloss.Right)

	FuncStyle = lipgloss.NewStyle().
			Foreground(ColorFunc)

	TypeStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorPrimary)

	ResultStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)
