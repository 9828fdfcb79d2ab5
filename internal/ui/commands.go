package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codeflow/panel/internal/configsync"
	"github.com/codeflow/panel/internal/logexport"
	"github.com/codeflow/panel/internal/logstream"
)

const (
	refreshTimeout = 10 * time.Second
	saveTimeout    = 10 * time.Second
)

// op names a user-triggered operation whose result becomes a toast.
type op int

const (
	opLoad op = iota // initial load, silent on success
	opReload
	opSave
	opRefresh
	opReconnect
	opCopy
	opDownload
)

// opResultMsg reports the outcome of a background operation.
type opResultMsg struct {
	op     op
	detail string
	err    error
}

// writeClipboard is swapped in tests; there is no clipboard in CI.
var writeClipboard = clipboard.WriteAll

func (m Model) loadConfigCmd(o op) tea.Cmd {
	cfg, ctx := m.cfg, m.ctx
	return func() tea.Msg {
		return opResultMsg{op: o, err: cfg.Load(ctx)}
	}
}

func (m Model) saveConfigCmd() tea.Cmd {
	cfg, ctx := m.cfg, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, saveTimeout)
		defer cancel()
		return opResultMsg{op: opSave, err: cfg.Save(ctx)}
	}
}

func (m Model) refreshStatusCmd() tea.Cmd {
	poller, ctx := m.poller, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		_, err := poller.Refresh(ctx)
		return opResultMsg{op: opRefresh, err: err}
	}
}

func (m Model) reconnectCmd() tea.Cmd {
	logs, ctx := m.logs, m.ctx
	return func() tea.Msg {
		return opResultMsg{op: opReconnect, err: logs.Connect(ctx)}
	}
}

func copyLogsCmd(entries []logstream.Entry) tea.Cmd {
	return func() tea.Msg {
		err := writeClipboard(logexport.Text(entries))
		return opResultMsg{op: opCopy, detail: fmt.Sprintf("%d lines", len(entries)), err: err}
	}
}

func downloadLogsCmd(dir string, entries []logstream.Entry, at time.Time) tea.Cmd {
	return func() tea.Msg {
		path, err := logexport.Write(dir, entries, at)
		return opResultMsg{op: opDownload, detail: path, err: err}
	}
}

// handleOpResult logs the outcome and turns it into a toast.
func (m Model) handleOpResult(msg opResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) || errors.Is(msg.err, configsync.ErrClosed) {
			return m, nil
		}
		m.log.Warnw("ui_op_failed", "op", msg.op, "err", msg.err)
		return m.showToast(opFailure(msg), true)
	}

	text := opSuccess(msg)
	if text == "" {
		return m, nil
	}
	m.log.Debugw("ui_op_done", "op", msg.op, "detail", msg.detail)
	return m.showToast(text, false)
}

func opSuccess(msg opResultMsg) string {
	switch msg.op {
	case opReload:
		return "Config reloaded"
	case opSave:
		return "Config saved"
	case opRefresh:
		return "Status refreshed"
	case opReconnect:
		return "Log stream connected"
	case opCopy:
		return "Copied " + msg.detail + " to clipboard"
	case opDownload:
		return "Saved " + msg.detail
	default:
		return ""
	}
}

func opFailure(msg opResultMsg) string {
	var (
		loadErr *configsync.LoadError
		saveErr *configsync.SaveError
	)
	switch {
	case errors.As(msg.err, &saveErr) && errors.Is(saveErr, configsync.ErrConflict):
		return "Config changed on disk; reload before saving"
	case errors.As(msg.err, &saveErr):
		return "Save failed: " + saveErr.Err.Error()
	case errors.As(msg.err, &loadErr):
		return "Load failed: " + loadErr.Err.Error()
	}

	switch msg.op {
	case opRefresh:
		return "Refresh failed: " + msg.err.Error()
	case opReconnect:
		return "Connect failed: " + msg.err.Error()
	case opCopy:
		return "Copy failed: " + msg.err.Error()
	case opDownload:
		return "Download failed: " + msg.err.Error()
	default:
		return msg.err.Error()
	}
}

func (o op) String() string {
	switch o {
	case opLoad:
		return "load"
	case opReload:
		return "reload"
	case opSave:
		return "save"
	case opRefresh:
		return "refresh"
	case opReconnect:
		return "reconnect"
	case opCopy:
		return "copy"
	case opDownload:
		return "download"
	default:
		return "unknown"
	}
}
