package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorDim  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true)
	stylePass  = lipgloss.NewStyle().Foreground(colorPass)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarn)
	styleFail  = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	styleDim   = lipgloss.NewStyle().Foreground(colorDim)
)
