package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderBox draws content inside a rounded border with the title set into
// the top edge. width and height include the border.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	width = max(width, 8)
	height = max(height, 3)

	borderColor := lipgloss.Color(m.theme.Border)
	bgColor := lipgloss.Color(m.theme.Background)
	if focused {
		borderColor = lipgloss.Color(m.theme.BorderFocus)
		bgColor = lipgloss.Color(m.theme.FocusBg)
	}
	border := lipgloss.RoundedBorder()
	edge := lipgloss.NewStyle().Foreground(borderColor).Background(bgColor)

	title = truncate(title, width-6)
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Accent)).
		Background(bgColor).
		Bold(true)
	fill := max(width-5-lipgloss.Width(title), 0)
	top := edge.Render(border.TopLeft+border.Top+" ") +
		titleStyle.Render(title) +
		edge.Render(" "+strings.Repeat(border.Top, fill)+border.TopRight)

	inner := lipgloss.NewStyle().
		Width(width - 2).
		Height(height - 2).
		MaxHeight(height - 2).
		Background(bgColor).
		Foreground(lipgloss.Color(m.theme.Text)).
		Render(content)

	body := lipgloss.NewStyle().
		Border(border, false, true, true, true).
		BorderForeground(borderColor).
		BorderBackground(bgColor).
		Render(inner)

	return top + "\n" + body
}
