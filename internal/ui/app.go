package ui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sessionctl/internal/diagnostics"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/prefs"
	"github.com/five82/sessionctl/internal/state"
)

// Controller is the intent surface the TUI drives.
type Controller interface {
	View() state.View

	RequestStart(ctx context.Context, override bool) error
	EndSession(ctx context.Context) error
	AbortStart(ctx context.Context) error
	CheckForActiveSession(ctx context.Context) error
	ClearError(ctx context.Context) error
	DismissConfirmation(ctx context.Context) error
	SetSessionMode(ctx context.Context, enabled bool) error

	ResumeConflict(ctx context.Context) error
	ReplaceConflict(ctx context.Context) error
	CancelConflict(ctx context.Context) error

	ToggleIncluded(ctx context.Context, deviceID string) error
	ToggleAutoStream(ctx context.Context, deviceID string) error
	ToggleStreaming(ctx context.Context, deviceID string) error
	StartStreaming(ctx context.Context, deviceID string) error
	StopStreaming(ctx context.Context, deviceID string) error
	Connect(ctx context.Context, deviceID string) error
	Disconnect(ctx context.Context, deviceID string) error
	DisconnectAll(ctx context.Context) error
	DeviceOperations(ctx context.Context, deviceID string) ([]hub.Operation, error)
	ExecuteOperation(ctx context.Context, deviceID, name string) error
	ToggleScan(ctx context.Context) error
	ResetDevices(ctx context.Context) error

	RefreshBuffer(ctx context.Context) (diagnostics.Stats, error)
	ResetFailedPackets(ctx context.Context, deviceID string) (int, error)
	ClearBuffer(ctx context.Context) error
}

// View represents the current active view.
type View int

const (
	ViewDevices View = iota
	ViewBuffer
	ViewLogs
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	Controller Controller
	Prefs      prefs.Prefs
	PrefsPath  string
	LogPath    string
	Refresh    time.Duration
	Logger     *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	ctrl      Controller
	keys      keyMap
	prefsPath string
	logPath   string
	refresh   time.Duration
	logger    *slog.Logger

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	spinner     spinner.Model
	modal       Modal

	// Data state
	view        state.View
	lastUpdated time.Time
	selectedID  string
	flash       string

	// Log state
	logViewport viewport.Model
	logState    logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = DefaultUIInterval
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return Model{
		ctx:         ctx,
		ctrl:        opts.Controller,
		keys:        DefaultKeyMap(),
		prefsPath:   prefsPath,
		logPath:     opts.LogPath,
		refresh:     refresh,
		logger:      logger,
		theme:       GetTheme(opts.Prefs.Theme),
		currentView: ViewDevices,
		spinner:     sp,
		logState:    logState{follow: true},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.refresh),
		fetchViewCmd(m.ctrl),
		m.spinner.Tick,
	)
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
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case viewMsg:
		m.applyView(state.View(msg))
		return m, nil

	case intentResultMsg:
		m.handleIntentResult(msg)
		return m, fetchViewCmd(m.ctrl)

	case operationsMsg:
		m.handleOperations(msg)
		return m, nil

	case logBatchMsg:
		m.handleLogBatch(msg)
		return m, nil

	case logErrorMsg:
		m.logState.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}

	return m.renderMain()
}

// applyView stores a fresh controller view and opens or closes the modal it
// calls for.
func (m *Model) applyView(v state.View) {
	m.view = v
	m.lastUpdated = time.Now()
	m.clampSelection()
	m.syncModal()
}

// syncModal keeps the modal in step with the session. A conflict always
// takes precedence over a pending confirmation.
func (m *Model) syncModal() {
	s := m.view.Session
	switch {
	case s.Conflict != nil:
		cm, ok := m.modal.(conflictModal)
		if !ok {
			cm = newConflictModal(m.ctx, m.ctrl, *s.Conflict)
		}
		cm.lastErr = s.LastError
		if !s.Busy && s.LastError != "" {
			cm.pending = ""
		}
		m.modal = cm
	case len(s.Confirm) > 0:
		if _, ok := m.modal.(confirmModal); !ok {
			m.modal = newConfirmModal(m.ctx, m.ctrl, s.Confirm)
		}
	default:
		// The operations picker is user-opened and outlives view updates.
		if _, ok := m.modal.(operationsModal); !ok {
			m.modal = nil
		}
	}
}

func (m *Model) handleIntentResult(msg intentResultMsg) {
	// A confirmation request is answered by the modal the next view opens.
	if msg.err == nil || isConfirmation(msg.err) {
		m.flash = ""
		return
	}
	m.logger.Debug("intent failed", "intent", msg.name, "error", msg.err)
	m.flash = msg.name + ": " + msg.err.Error()
}

// handleOperations opens the picker for a device's operations, unless a
// session modal got there first.
func (m *Model) handleOperations(msg operationsMsg) {
	switch {
	case msg.err != nil:
		m.flash = "operations: " + msg.err.Error()
	case len(msg.ops) == 0:
		m.flash = "No operations for " + msg.device
	case m.modal == nil:
		m.flash = ""
		m.modal = newOperationsModal(m.ctx, m.ctrl, msg.deviceID, msg.device, msg.ops)
	}
}

// handleTick processes the refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{fetchViewCmd(m.ctrl)}

	if m.currentView == ViewLogs && m.logState.follow {
		if cmd := m.refreshLogs(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, tickCmd(m.refresh))
	return m, tea.Batch(cmds...)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBuffer:
		return m.renderBuffer()
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderDevicesView()
	}
}

// Messages

type tickMsg time.Time

type viewMsg state.View

type intentResultMsg struct {
	name string
	err  error
}

type operationsMsg struct {
	deviceID string
	device   string
	ops      []hub.Operation
	err      error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchViewCmd(ctrl Controller) tea.Cmd {
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		return viewMsg(ctrl.View())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
