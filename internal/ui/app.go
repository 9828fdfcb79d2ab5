package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/codeflow/panel/internal/config"
	"github.com/codeflow/panel/internal/configsync"
	"github.com/codeflow/panel/internal/document"
	"github.com/codeflow/panel/internal/logstream"
	"github.com/codeflow/panel/internal/prefs"
	"github.com/codeflow/panel/internal/status"
)

// View represents the current active view.
type View int

const (
	ViewDashboard View = iota
	ViewLogs
	ViewConfig
)

var viewNames = []string{"dashboard", "logs", "config"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return viewNames[0]
	}
	return viewNames[v]
}

// ParseView maps a stored view name to a View; unknown names give the
// dashboard.
func ParseView(name string) View {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range viewNames {
		if n == name {
			return View(i)
		}
	}
	return ViewDashboard
}

const clockTick = time.Second

// Options configures the UI. Any of the three components may be nil; its
// view then shows a placeholder.
type Options struct {
	Context   context.Context
	Poller    *status.Poller
	Logs      *logstream.Client
	Config    *configsync.Controller
	Settings  *config.Config
	Logger    *zap.SugaredLogger
	ThemeName string
	View      View
	PrefsPath string
	Now       func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	poller    *status.Poller
	logs      *logstream.Client
	cfg       *configsync.Controller
	settings  config.Config
	log       *zap.SugaredLogger
	prefsPath string
	now       func() time.Time

	// UI state
	keys        keyMap
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	clock       time.Time

	// Data state, copied from the components on every change
	status  status.State
	stream  logstream.Status
	entries []logstream.Entry
	config  configsync.State
	working document.Document

	// Dashboard state
	dashViewport viewport.Model

	// Log state
	logViewport viewport.Model
	logState    logState

	// Config state
	configViewport viewport.Model
	editInput      textinput.Model
	editing        bool
	editErr        string

	// Overlays
	showHelp    bool
	confirmQuit bool
	toast       toast
	toastSeq    int
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	settings := config.Default()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.Default().Theme
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	ti := textinput.New()
	ti.Placeholder = "path.to.key = value"
	ti.CharLimit = 256

	m := Model{
		ctx:         ctx,
		poller:      opts.Poller,
		logs:        opts.Logs,
		cfg:         opts.Config,
		settings:    settings,
		log:         log,
		prefsPath:   prefsPath,
		now:         now,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: opts.View,
		clock:       now(),
		working:     document.New(),
		editInput:   ti,
	}
	m.initLogState()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(clockTick)}
	if m.poller != nil {
		cmds = append(cmds, statusCmd(m.poller))
	}
	if m.logs != nil {
		cmds = append(cmds, streamCmd(m.logs, m.stream))
	}
	if m.cfg != nil {
		cmds = append(cmds, configCmd(m.cfg), m.loadConfigCmd(opLoad))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateDashViewport()
		m.updateLogViewport()
		m.updateConfigViewport()
		return m, nil

	case tickMsg:
		m.clock = time.Time(msg)
		return m, tickCmd(clockTick)

	case statusChangedMsg:
		failing := m.status.Err != nil
		m.status = msg.state
		m.updateDashViewport()
		next := waitCmd(m.ctx, msg.next, statusCmd(m.poller))
		// Notify once per failure streak; the banner covers the rest.
		if msg.state.Err != nil && !failing {
			return m.withToast(next, "Status poll failed: "+classifyConnectionError(msg.state.Err), true)
		}
		return m, next

	case streamChangedMsg:
		wasFailed := m.stream.State == logstream.Failed
		m.stream = msg.status
		if msg.reset {
			m.entries = msg.entries
		} else {
			m.entries = append(m.entries, msg.entries...)
		}
		m.logState.contentVersion++
		m.updateLogViewport()
		next := waitCmd(m.ctx, msg.next, streamCmd(m.logs, m.stream))
		if msg.status.State == logstream.Failed && !wasFailed && msg.status.Err != nil {
			return m.withToast(next, "Log stream failed: "+classifyConnectionError(msg.status.Err), true)
		}
		return m, next

	case configChangedMsg:
		m.config = msg.state
		m.working = msg.working
		m.updateConfigViewport()
		return m, waitCmd(m.ctx, msg.next, configCmd(m.cfg))

	case opResultMsg:
		return m.handleOpResult(msg)

	case toastExpiredMsg:
		if msg.id == m.toast.id {
			m.toast = toast{}
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.confirmQuit {
		return m.renderConfirmQuit()
	}

	// Show help overlay if active
	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmQuit {
		m.confirmQuit = false
		if msg.String() == "y" || msg.String() == "Y" {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	// Text inputs take every key except ctrl+c.
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}
	if m.logState.searchActive {
		return m.handleLogSearchInput(msg)
	}
	if m.editing {
		return m.handleEditInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.logState.contentVersion++
		m.updateDashViewport()
		m.updateLogViewport()
		m.updateConfigViewport()
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView((m.currentView + 1) % View(len(viewNames)))

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView((m.currentView + View(len(viewNames)) - 1) % View(len(viewNames)))

	case key.Matches(msg, m.keys.ViewDashboard):
		return m.switchView(ViewDashboard)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)

	case key.Matches(msg, m.keys.ViewConfig):
		return m.switchView(ViewConfig)
	}

	// View-specific keys
	switch m.currentView {
	case ViewDashboard:
		return m.handleDashboardKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	case ViewConfig:
		return m.handleConfigKey(msg)
	}

	return m, nil
}

// quit exits, or asks first when config edits would be lost.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cfg != nil && m.cfg.NeedsConfirmation() {
		m.confirmQuit = true
		return m, nil
	}
	return m, tea.Quit
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if v == m.currentView {
		return m, nil
	}
	m.currentView = v
	m.updateLogViewport()
	m.updateConfigViewport()
	m.savePrefs()
	return m, nil
}

func (m Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, View: m.currentView.String()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.log.Warnw("prefs_save_failed", "path", m.prefsPath, "err", err)
	}
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: logo + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	// Main content
	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogs:
		return m.renderLogs()
	case ViewConfig:
		return m.renderConfig()
	default:
		return m.renderDashboard()
	}
}

// contentHeight is the height below the header and command bar.
func (m Model) contentHeight() int {
	return max(m.height-2, 4)
}

// Messages

type tickMsg time.Time

type statusChangedMsg struct {
	state status.State
	next  <-chan struct{}
}

// streamChangedMsg carries only the entries received since the previous
// message, or the whole buffer when reset is set.
type streamChangedMsg struct {
	status  logstream.Status
	entries []logstream.Entry
	reset   bool
	next    <-chan struct{}
}

type configChangedMsg struct {
	state   configsync.State
	working document.Document
	next    <-chan struct{}
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// The change commands take the Changed channel before reading state, so a
// change that lands between the read and the next wait is never missed.

func statusCmd(p *status.Poller) tea.Cmd {
	return func() tea.Msg {
		next := p.Changed()
		return statusChangedMsg{state: p.State(), next: next}
	}
}

func streamCmd(c *logstream.Client, seen logstream.Status) tea.Cmd {
	return func() tea.Msg {
		next := c.Changed()
		st, entries, reset := c.Tail(seen.NextSeq, seen.Clears)
		return streamChangedMsg{status: st, entries: entries, reset: reset, next: next}
	}
}

func configCmd(c *configsync.Controller) tea.Cmd {
	return func() tea.Msg {
		next := c.Changed()
		return configChangedMsg{state: c.State(), working: c.Working(), next: next}
	}
}

// waitCmd blocks until ch closes, then runs then. It returns nothing once
// ctx is done.
func waitCmd(ctx context.Context, ch <-chan struct{}, then tea.Cmd) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return then()
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		// Cancelling ctx is the normal way the host stops the program.
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
