package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codeflow/panel/internal/docstore"
)

// updateConfigViewport renders the working document into the config box.
func (m *Model) updateConfigViewport() {
	if !m.ready {
		return
	}
	width := max(m.width-4, 1)
	height := max(m.contentHeight()-3, 1)
	if m.configViewport.Width == 0 {
		m.configViewport = viewport.New(width, height)
	}
	m.configViewport.Width = width
	m.configViewport.Height = height
	m.configViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.configViewport.SetContent(m.renderConfigContent())
}

func (m Model) renderConfigContent() string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	switch {
	case m.cfg == nil:
		return bg.Render("Config editing is disabled.", styles.FaintText)
	case !m.config.Loaded && m.config.Err != nil:
		return bg.Render(m.config.Err.Error(), styles.DangerText)
	case !m.config.Loaded:
		return bg.Render("Loading config...", styles.FaintText)
	case len(m.working) == 0:
		return bg.Render("The document is empty. Press e to add a key.", styles.FaintText)
	}

	data, err := docstore.YAML{}.Encode(m.working)
	if err != nil {
		return bg.Render(err.Error(), styles.DangerText)
	}
	return highlightYAML(string(data), m.theme.ChromaStyle)
}

// renderConfig renders the config view.
func (m Model) renderConfig() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)

	title := "Config " + truncateMiddle(m.settings.DocumentPath, max(m.width/2, 20))
	if m.config.Dirty {
		title += " [modified]"
	}
	box := m.renderBox(title, m.configViewport.View(), m.width, m.contentHeight()-1, true)
	return box + "\n" + m.renderConfigStatus(styles, bg)
}

// renderConfigStatus renders the edit prompt or the sync state.
func (m Model) renderConfigStatus(styles Styles, bg BgStyle) string {
	if m.editing {
		line := bg.Render("edit>", styles.AccentText) + bg.Space() + m.editInput.View()
		if m.editErr != "" {
			line += bg.Spaces(2) + bg.Render(m.editErr, styles.DangerText)
		}
		return bg.FillLine(line, m.width)
	}
	if m.cfg == nil {
		return ""
	}

	st := m.config
	var parts []string
	switch {
	case st.Saving:
		parts = append(parts, bg.Render("saving...", styles.InfoText))
	case st.Loading:
		parts = append(parts, bg.Render("loading...", styles.InfoText))
	case st.Dirty:
		parts = append(parts, bg.Render("● unsaved changes", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("in sync", styles.SuccessText))
	}
	if !st.LastSaved.IsZero() {
		parts = append(parts, bg.Render("saved", styles.FaintText)+bg.Space()+
			bg.Render(st.LastSaved.Format("15:04:05"), styles.MutedText))
	}
	if st.Err != nil {
		parts = append(parts, bg.Render(truncate(st.Err.Error(), max(m.width/2, 20)), styles.DangerText))
	}
	return bg.FillLine(bg.Join(parts, bg.Spaces(2)), m.width)
}

// handleConfigKey processes keyboard input for the config view.
func (m *Model) handleConfigKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.cfg == nil {
		return *m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Edit):
		m.editing = true
		m.editErr = ""
		m.editInput.SetValue("")
		return *m, m.editInput.Focus()

	case key.Matches(msg, m.keys.Save):
		if !m.cfg.IsDirty() {
			return m.showToast("No changes to save", false)
		}
		return *m, m.saveConfigCmd()

	case key.Matches(msg, m.keys.Reset):
		if !m.cfg.IsDirty() {
			return *m, nil
		}
		m.cfg.Reset()
		return m.showToast("Edits discarded", false)

	case key.Matches(msg, m.keys.Refresh):
		if m.cfg.NeedsConfirmation() {
			return m.showToast("Save or discard edits before reloading", true)
		}
		return *m, m.loadConfigCmd(opReload)

	case key.Matches(msg, m.keys.Down):
		m.configViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.configViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Top):
		m.configViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.configViewport.GotoBottom()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.configViewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.configViewport.HalfPageUp()
	}
	return *m, nil
}

// handleEditInput handles keyboard input on the edit prompt.
func (m *Model) handleEditInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		input := strings.TrimSpace(m.editInput.Value())
		if input == "" {
			m.stopEditing()
			return *m, nil
		}
		patch, err := parseAssignment(input)
		if err != nil {
			m.editErr = err.Error()
			return *m, nil
		}
		if err := m.cfg.Edit(patch); err != nil {
			m.stopEditing()
			return m.showToast("Edit failed: "+err.Error(), true)
		}
		m.stopEditing()
		return *m, nil

	case key.Matches(msg, m.keys.Escape):
		m.stopEditing()
		return *m, nil
	}

	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	return *m, cmd
}

func (m *Model) stopEditing() {
	m.editing = false
	m.editErr = ""
	m.editInput.Blur()
	m.editInput.SetValue("")
}
