package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codeflow/panel/internal/docstore"
	"github.com/codeflow/panel/internal/engine"
)

// handleDashboardKey processes keyboard input for the dashboard.
func (m *Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		if m.poller == nil {
			return *m, nil
		}
		return *m, m.refreshStatusCmd()
	case key.Matches(msg, m.keys.Down):
		m.dashViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.dashViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Top):
		m.dashViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.dashViewport.GotoBottom()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.dashViewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.dashViewport.HalfPageUp()
	}
	return *m, nil
}

// updateDashViewport re-renders the dashboard body for the current state.
func (m *Model) updateDashViewport() {
	if !m.ready {
		return
	}
	width := max(m.width-4, 1)
	height := max(m.contentHeight()-2, 1)
	if m.dashViewport.Width == 0 {
		m.dashViewport = viewport.New(width, height)
	}
	m.dashViewport.Width = width
	m.dashViewport.Height = height
	m.dashViewport.SetContent(m.renderDashboardContent())
}

// renderDashboard renders the dashboard view.
func (m Model) renderDashboard() string {
	return m.renderBox("Engine "+m.settings.APIBind, m.dashViewport.View(), m.width, m.contentHeight(), true)
}

func (m Model) renderDashboardContent() string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	if m.poller == nil {
		return bg.Render("Status polling is disabled.", styles.FaintText)
	}

	st := m.status
	var b strings.Builder

	// Error banner; the last good snapshot stays visible below it.
	if st.Err != nil {
		b.WriteString(bg.Render("⚠ "+st.Err.Error(), styles.DangerText))
		b.WriteString("\n")
		if st.ConsecutiveFailures > 1 {
			b.WriteString(bg.Render(fmt.Sprintf("%d polls failed in a row", st.ConsecutiveFailures), styles.MutedText))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if !st.HasSnapshot() {
		b.WriteString(bg.Render("Waiting for the first status response...", styles.FaintText))
		return b.String()
	}

	summary := engine.Summarize(st.Snapshot.Values())
	engineStyle := styles.DangerText
	if summary.Running() {
		engineStyle = styles.SuccessText
	}
	workflowStyle := styles.WarningText
	if summary.WorkflowActive() {
		workflowStyle = styles.SuccessText
	}

	rows := []struct {
		label string
		value string
		style func(string) string
	}{
		{"Engine", orDash(summary.Engine), func(s string) string { return bg.Render(s, engineStyle) }},
		{"Workflow", orDash(summary.WorkflowEngine), func(s string) string { return bg.Render(s, workflowStyle) }},
		{"Actions", fmt.Sprintf("%d", summary.Actions), nil},
		{"Integrations", fmt.Sprintf("%d", summary.Integrations), nil},
		{"LLM providers", fmt.Sprintf("%d", summary.LLMProviders), nil},
		{"Captured", st.Snapshot.CapturedAt().Format("15:04:05"), nil},
	}
	for _, row := range rows {
		b.WriteString(bg.Render(fmt.Sprintf("%-14s", row.label), styles.MutedText))
		if row.style != nil {
			b.WriteString(row.style(row.value))
		} else {
			b.WriteString(bg.Render(row.value, styles.Text))
		}
		b.WriteString("\n")
	}

	raw, err := docstore.YAML{}.Encode(st.Snapshot.Values())
	if err == nil {
		b.WriteString("\n")
		b.WriteString(bg.Render("Raw status", styles.AccentText.Bold(true)))
		b.WriteString("\n")
		b.WriteString(highlightYAML(string(raw), m.theme.ChromaStyle))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
