package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codeflow/panel/internal/logstream"
)

// logState holds all log-view state. The entries themselves live on the
// Model, copied from the client on every change.
type logState struct {
	follow bool

	// Search
	searchActive bool
	searchQuery  string
	searchInput  textinput.Model

	// Content caching - skip re-render when unchanged
	contentVersion uint64
	lastRendered   uint64
}

// initLogState initializes the log state.
func (m *Model) initLogState() {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.CharLimit = 100

	m.logState = logState{follow: true}
	m.logState.searchInput = ti
}

// visibleEntries applies the active search to the buffer copy.
func (m Model) visibleEntries() []logstream.Entry {
	return logstream.Filter(m.entries, m.logState.searchQuery)
}

// updateLogViewport updates the log viewport with current content.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	// Box height = contentHeight - 1 (status bar below)
	// Box inner = box height - 2 (top and bottom borders)
	width := max(m.width-4, 1)
	height := max(m.contentHeight()-3, 1)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, height)
	}
	m.logViewport.Width = width
	m.logViewport.Height = height
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	// Only re-render content if it changed
	if m.logState.lastRendered == 0 || m.logState.contentVersion != m.logState.lastRendered {
		m.logViewport.SetContent(m.renderLogContent())
		m.logState.lastRendered = m.logState.contentVersion
		if m.logState.lastRendered == 0 {
			m.logState.lastRendered = 1 // Mark as rendered at least once
		}
	}

	// Auto-scroll if following
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	bg := NewBgStyle(m.theme.Background)
	styles := m.theme.Styles()

	title := "Logs " + truncateMiddle(m.streamAddr(), max(m.width/2, 20))
	box := m.renderBox(title, m.logViewport.View(), m.width, m.contentHeight()-1, true)

	return box + "\n" + m.renderLogStatus(styles, bg)
}

func (m Model) streamAddr() string {
	if m.logs == nil {
		return ""
	}
	return m.logs.Addr()
}

// renderLogStatus renders the line under the log box: the search prompt
// while typing, otherwise the connection and buffer summary.
func (m Model) renderLogStatus(styles Styles, bg BgStyle) string {
	if m.logState.searchActive {
		return bg.FillLine(bg.Render("/", styles.AccentText)+m.logState.searchInput.View(), m.width)
	}
	if m.logs == nil {
		return bg.FillLine(bg.Render("Log streaming is disabled.", styles.FaintText), m.width)
	}

	st := m.stream
	sep := bg.Spaces(2)
	parts := []string{
		bg.Render("●", styles.ConnectionStyle(st.State)) + bg.Space() +
			bg.Render(st.State.String(), styles.ConnectionStyle(st.State)),
	}
	if st.ConnID != "" {
		parts = append(parts, bg.Render("conn", styles.FaintText)+bg.Space()+
			bg.Render(truncate(st.ConnID, 8), styles.MutedText))
	}

	count := fmt.Sprintf("%d lines", len(m.entries))
	if q := m.logState.searchQuery; q != "" {
		count = fmt.Sprintf("%d/%d match %q", len(m.visibleEntries()), len(m.entries), q)
	}
	parts = append(parts, bg.Render(count, styles.Text))

	if m.logState.follow {
		parts = append(parts, bg.Render("following", styles.SuccessText))
	} else {
		parts = append(parts, bg.Render("paused", styles.WarningText))
	}
	if st.Err != nil {
		parts = append(parts, bg.Render(truncate(st.Err.Error(), max(m.width/2, 20)), styles.DangerText))
	}

	return bg.FillLine(bg.Join(parts, sep), m.width)
}

// renderLogContent renders the visible entries, one per line.
func (m *Model) renderLogContent() string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	entries := m.visibleEntries()
	if len(entries) == 0 {
		switch {
		case m.logs == nil:
			return ""
		case m.logState.searchQuery != "":
			return bg.Render("No lines match the search.", styles.FaintText)
		default:
			return bg.Render("Waiting for log lines...", styles.FaintText)
		}
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		seq := bg.Render(fmt.Sprintf("%6d", e.Seq), styles.FaintText)
		lines[i] = seq + bg.Space() + m.colorizeLine(e.Text, styles, bg)
	}
	return strings.Join(lines, "\n")
}

// colorizeLine colors a line by the first level token it contains and
// marks search matches.
func (m *Model) colorizeLine(line string, styles Styles, bg BgStyle) string {
	style := styles.Text
	switch lineLevel(line) {
	case "ERROR":
		style = styles.DangerText
	case "WARN":
		style = styles.WarningText
	case "DEBUG":
		style = styles.FaintText
	}

	query := m.logState.searchQuery
	if query == "" {
		return bg.Render(line, style)
	}
	match := styles.AccentText.Bold(true).Underline(true)
	var b strings.Builder
	for _, seg := range splitMatches(line, query) {
		if seg.match {
			b.WriteString(match.Render(seg.text))
		} else {
			b.WriteString(bg.Render(seg.text, style))
		}
	}
	return b.String()
}

func lineLevel(line string) string {
	upper := strings.ToUpper(line)
	for _, level := range []string{"ERROR", "WARN", "INFO", "DEBUG"} {
		if strings.Contains(upper, level) {
			return level
		}
	}
	return ""
}

type segment struct {
	text  string
	match bool
}

// splitMatches cuts line into alternating runs around case-insensitive
// occurrences of query.
func splitMatches(line, query string) []segment {
	if query == "" {
		return []segment{{text: line}}
	}
	lower := strings.ToLower(line)
	needle := strings.ToLower(query)
	if len(lower) != len(line) {
		// Case folding changed byte offsets; skip marking.
		return []segment{{text: line}}
	}
	var out []segment
	rest := 0
	for {
		i := strings.Index(lower[rest:], needle)
		if i < 0 {
			break
		}
		start := rest + i
		end := start + len(needle)
		if start > rest {
			out = append(out, segment{text: line[rest:start]})
		}
		out = append(out, segment{text: line[start:end], match: true})
		rest = end
	}
	if rest < len(line) {
		out = append(out, segment{text: line[rest:]})
	}
	return out
}

// handleLogsKey processes keyboard input for logs view.
func (m *Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		m.updateLogViewport()
		return *m, nil

	case key.Matches(msg, m.keys.Search):
		m.logState.searchActive = true
		m.logState.searchInput.SetValue(m.logState.searchQuery)
		return *m, m.logState.searchInput.Focus()

	case key.Matches(msg, m.keys.Escape):
		if m.logState.searchQuery != "" {
			m.clearLogSearch()
			m.updateLogViewport()
		}
		return *m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.logs == nil {
			return *m, nil
		}
		if m.stream.State == logstream.Open || m.stream.State == logstream.Connecting {
			return m.showToast("Log stream is already "+m.stream.State.String(), false)
		}
		return *m, m.reconnectCmd()

	case key.Matches(msg, m.keys.CopyLogs):
		entries := m.visibleEntries()
		if len(entries) == 0 {
			return m.showToast("Nothing to copy", false)
		}
		return *m, copyLogsCmd(entries)

	case key.Matches(msg, m.keys.DownloadLogs):
		entries := m.visibleEntries()
		if len(entries) == 0 {
			return m.showToast("Nothing to download", false)
		}
		return *m, downloadLogsCmd(m.settings.ExportDir, entries, m.now())

	case key.Matches(msg, m.keys.ClearLogs):
		if m.logs != nil {
			m.logs.Clear()
		}
		return m.showToast("Logs cleared", false)

	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		m.logState.follow = false

	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		m.logState.follow = true

	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
		m.logState.follow = false

	case key.Matches(msg, m.keys.Up):
		m.logViewport.ScrollUp(1)
		m.logState.follow = false

	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfPageDown()
		m.logState.follow = false

	case key.Matches(msg, m.keys.HalfPageUp):
		m.logViewport.HalfPageUp()
		m.logState.follow = false
	}

	return *m, nil
}

// handleLogSearchInput handles keyboard input during log search.
func (m *Model) handleLogSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.logState.searchActive = false
		m.logState.searchInput.Blur()
		m.logState.searchQuery = strings.TrimSpace(m.logState.searchInput.Value())
		m.logState.contentVersion++
		m.updateLogViewport()
		return *m, nil

	case key.Matches(msg, m.keys.Escape):
		// Cancel search input
		m.logState.searchActive = false
		m.logState.searchInput.Blur()
		m.logState.searchInput.SetValue("")
		return *m, nil
	}

	// Let the text input handle the key
	var cmd tea.Cmd
	m.logState.searchInput, cmd = m.logState.searchInput.Update(msg)
	return *m, cmd
}

// clearLogSearch clears the search state.
func (m *Model) clearLogSearch() {
	m.logState.searchQuery = ""
	m.logState.searchInput.SetValue("")
	m.logState.contentVersion++ // Search highlighting changed
}
