// Package tui renders the nok state snapshot with bubbletea and feeds
// keystrokes back to the controller.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/core"
	"github.com/xonecas/nok/internal/state"
)

// Controller is the part of core.Controller the renderer drives.
type Controller interface {
	HandleKey(k core.Key) core.Action
	Login(username, password, baseURL string)
	Snapshot() state.AppState
	Changes() <-chan struct{}
}

// Options describes the session the renderer starts with.
type Options struct {
	Backend  string
	Server   string
	Username string
	// NeedsPassword hides the password field when false.
	NeedsPassword bool

	// OnSignIn runs when a user becomes logged in, with the form values
	// that were submitted.
	OnSignIn func(user chat.User, username, server string)
	// OnSignOut runs when the logged-in user is cleared.
	OnSignOut func(user chat.User)
}

// Model is the main TUI model.
type Model struct {
	ctrl Controller
	opts Options

	st       state.AppState
	width    int
	height   int
	showHelp bool

	login   LoginForm
	spinner spinner.Model
	status  StatusIndicator

	// submitted holds the form values of the login in flight.
	submittedUser   string
	submittedServer string
}

type stateChangedMsg struct{}

// New creates a new TUI model.
func New(ctrl Controller, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"⬡", "⬢", "⬡", "⬢", "⬦", "⬥", "⬦", "⬥"},
		FPS:    spinner.Dot.FPS,
	}
	sp.Style = lipgloss.NewStyle().Foreground(colorBrand)

	st := ctrl.Snapshot()
	status := NewStatusIndicator()
	status.SetStatus(st.ConnectionStatus)

	return Model{
		ctrl:    ctrl,
		opts:    opts,
		st:      st,
		login:   NewLoginForm(opts.Server, opts.Username, opts.NeedsPassword),
		spinner: sp,
		status:  status,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.listenForChanges(),
		m.spinner.Tick,
		m.status.Init(),
		textinput.Blink,
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.login.SetWidth(msg.Width)
		return m, nil

	case stateChangedMsg:
		m.refresh()
		return m, m.listenForChanges()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StatusTickMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.st.View == state.ViewLogin {
			return m.handleLoginKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.st.View == state.ViewLogin {
		var cmd tea.Cmd
		m.login, cmd, _ = m.login.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Escape) || key.Matches(msg, keys.Quit) {
		return m.dispatch(translateKey(msg))
	}
	if m.st.LoggingIn {
		return m, nil
	}

	form, cmd, submit := m.login.Update(msg)
	m.login = form
	if submit {
		m.submittedUser = form.Username()
		m.submittedServer = form.Server()
		log.Debug().Str("server", m.submittedServer).Str("username", m.submittedUser).Msg("Submitting login")
		m.ctrl.Login(m.submittedUser, form.Password(), m.submittedServer)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.st.View == state.ViewMain && !m.st.IsInputMode() && key.Matches(msg, keys.Help) {
		m.showHelp = true
		return m, nil
	}
	return m.dispatch(translateKey(msg))
}

func (m Model) dispatch(k core.Key) (tea.Model, tea.Cmd) {
	action := m.ctrl.HandleKey(k)
	m.refresh()
	if action == core.ActionQuit {
		return m, tea.Quit
	}
	return m, nil
}

// refresh pulls a new snapshot and fires the session hooks on login and
// logout transitions.
func (m *Model) refresh() {
	prev := m.st
	m.st = m.ctrl.Snapshot()
	m.status.SetStatus(m.st.ConnectionStatus)

	switch {
	case prev.CurrentUser == nil && m.st.CurrentUser != nil:
		if m.opts.OnSignIn != nil {
			m.opts.OnSignIn(*m.st.CurrentUser, m.submittedUser, m.submittedServer)
		}
	case prev.CurrentUser != nil && m.st.CurrentUser == nil:
		if m.opts.OnSignOut != nil {
			m.opts.OnSignOut(*prev.CurrentUser)
		}
		m.showHelp = false
		m.login = NewLoginForm(m.submittedServer, m.submittedUser, m.opts.NeedsPassword)
		m.login.SetWidth(m.width)
	}
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	switch {
	case m.st.View == state.ViewLogin:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.login.View(m.loginStatus()))
	case m.showHelp:
		return RenderHelp(m.width, m.height)
	case m.st.View == state.ViewSettings:
		return renderSettings(m.st, m.opts, m.width, m.height)
	default:
		return renderMain(m.st, m.status, m.width, m.height)
	}
}

func (m Model) loginStatus() string {
	switch {
	case m.st.LoggingIn:
		return m.spinner.View() + " " + dimmedStyle.Render("Logging in…")
	case m.st.Error != "":
		return errorStyle.Render(truncateWithEllipsis(m.st.Error, max(m.width-10, 10)))
	case m.st.Notification != "":
		return notificationStyle.Render(m.st.Notification)
	default:
		return ""
	}
}

func (m Model) listenForChanges() tea.Cmd {
	ch := m.ctrl.Changes()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}
