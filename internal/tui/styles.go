// Package tui provides the terminal version of the chat concierge.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#8B5CF6")
	colorAccent  = lipgloss.Color("#6366F1")
	colorSuccess = lipgloss.Color("#34D399")
	colorWarning = lipgloss.Color("#FBBF24")
	colorError   = lipgloss.Color("#F87171")

	colorText     = lipgloss.Color("#E5E7EB")
	colorTextDim  = lipgloss.Color("#9CA3AF")
	colorTextMute = lipgloss.Color("#6B7280")
	colorBorder   = lipgloss.Color("#374151")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	messagesAreaStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder).
				Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	modelLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true).
			PaddingLeft(2)

	suggestionKeyStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorTextMute)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorError)

	copiedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)
)

// statusStyle colors the status label of the header.
func statusStyle(busy, failed bool) lipgloss.Style {
	switch {
	case failed:
		return lipgloss.NewStyle().Foreground(colorError)
	case busy:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	}
}
