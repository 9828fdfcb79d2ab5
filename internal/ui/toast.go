package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const toastDuration = 3 * time.Second

// toast is a transient notice shown above the command bar.
type toast struct {
	id    int
	text  string
	isErr bool
}

type toastExpiredMsg struct{ id int }

// showToast replaces the current toast; only the newest one's timer clears it.
func (m Model) showToast(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toast = toast{id: m.toastSeq, text: text, isErr: isErr}
	id := m.toastSeq
	return m, tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// withToast shows a toast alongside an already scheduled command.
func (m Model) withToast(cmd tea.Cmd, text string, isErr bool) (tea.Model, tea.Cmd) {
	updated, toastCmd := m.showToast(text, isErr)
	return updated, tea.Batch(cmd, toastCmd)
}

func (m Model) renderToast(bg BgStyle, styles Styles) string {
	if m.toast.text == "" {
		return ""
	}
	style := styles.SuccessText
	icon := "✓"
	if m.toast.isErr {
		style = styles.DangerText
		icon = "✗"
	}
	return bg.Render(icon+" "+truncate(m.toast.text, max(m.width/2, 20)), style)
}
