package ui

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/codeflow/panel/internal/engine"
)

const logoText = "codeflow"

// renderHeader renders the status bar: engine state, freshness, stream state
// and the current toast.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render(logoText, styles.Logo)}
	parts = append(parts, m.engineParts(styles, bg)...)

	if m.logs != nil {
		state := m.stream.State
		parts = append(parts,
			bg.Render("Logs:", styles.MutedText)+bg.Space()+
				bg.Render(state.String(), styles.ConnectionStyle(state)))
	}

	if m.cfg != nil && m.config.Dirty {
		parts = append(parts, bg.Render("● unsaved", styles.WarningText.Bold(true)))
	}

	if t := m.renderToast(bg, styles); t != "" {
		parts = append(parts, t)
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, sep))
}

// engineParts describes the poller state. A failed poll keeps showing the
// last snapshot's values next to the error.
func (m Model) engineParts(styles Styles, bg BgStyle) []string {
	if m.poller == nil {
		return []string{bg.Render("engine status disabled", styles.FaintText)}
	}
	st := m.status

	if !st.HasSnapshot() {
		if st.Err != nil {
			return []string{
				bg.Render("ENGINE "+classifyConnectionError(st.Err), styles.DangerText.Bold(true)),
				bg.Render("Retrying...", styles.WarningText.Bold(true)),
			}
		}
		return []string{bg.Render("Connecting to engine...", styles.WarningText.Bold(true))}
	}

	summary := engine.Summarize(st.Snapshot.Values())
	var parts []string
	if summary.Running() {
		parts = append(parts, bg.Render("● ON", styles.SuccessText))
	} else {
		parts = append(parts, bg.Render("● OFF", styles.DangerText))
	}
	if st.Err != nil {
		label := "STALE"
		if st.IsOffline() {
			label = classifyConnectionError(st.Err)
		}
		parts = append(parts, bg.Render(label, styles.DangerText.Bold(true)))
	}

	updated := "never"
	if !st.LastUpdated.IsZero() {
		updated = humanizeDuration(m.clock.Sub(st.LastUpdated))
		if updated != "now" {
			updated += " ago"
		}
	}
	parts = append(parts, bg.Render("Updated:", styles.MutedText)+bg.Space()+bg.Render(updated, styles.Text))
	return parts
}

// classifyConnectionError maps a fetch or transport error to a short label.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TIMEOUT"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	case strings.Contains(msg, "status 4"), strings.Contains(msg, "status 5"):
		return "HTTP ERROR"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the command hints bar for the current view.
func (m Model) renderCommandBar() string {
	// Command bar uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"/", "Search"},
			{"c", "Copy"},
			{"d", "Download"},
			{"x", "Clear"},
			{"^r", "Reconnect"},
			{"?", "More"},
		}
	case ViewConfig:
		commands = []cmd{
			{"e", "Edit"},
			{"^s", "Save"},
			{"^z", "Discard"},
			{"^r", "Reload"},
			{"j/k", "Scroll"},
			{"?", "More"},
		}
	default: // ViewDashboard
		commands = []cmd{
			{"^r", "Refresh"},
			{"j/k", "Scroll"},
			{"2", "Logs"},
			{"3", "Config"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	// Show active log search pattern
	if m.currentView == ViewLogs && m.logState.searchQuery != "" {
		pattern := truncate(m.logState.searchQuery, 18)
		segments = append(segments,
			bg.Render("/"+pattern, styles.AccentText))
	}

	// Add theme indicator
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

// truncate truncates a string to max runes with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// truncateMiddle truncates a string in the middle, preserving start and end.
func truncateMiddle(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 5 {
		return string(runes[:max])
	}
	// Keep more of the end (file name) than the start
	endLen := (max - 3) * 2 / 3
	startLen := max - 3 - endLen
	return string(runes[:startLen]) + "..." + string(runes[len(runes)-endLen:])
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
