package tui

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/core"
	"github.com/xonecas/nok/internal/state"
)

// Test constants for consistent terminal dimensions
const (
	TestTerminalWidth  = 120
	TestTerminalHeight = 40
)

// setupColorTest forces an ANSI-free profile so rendered text can be
// matched directly. Returns a cleanup function that should be deferred.
func setupColorTest(t *testing.T) func() {
	t.Helper()
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	return func() {
		lipgloss.SetColorProfile(prev)
	}
}

var ansiStripRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiStripRegex.ReplaceAllString(s, "")
}

type loginCall struct {
	username, password, server string
}

// fakeController drives a real state store and records what the renderer
// asked for.
type fakeController struct {
	store *state.Store

	mu      sync.Mutex
	keys    []core.Key
	logins  []loginCall
	onLogin func(username, password, server string)
}

func newFakeController() *fakeController {
	return &fakeController{store: state.NewStore()}
}

func (f *fakeController) HandleKey(k core.Key) core.Action {
	f.mu.Lock()
	f.keys = append(f.keys, k)
	f.mu.Unlock()

	switch {
	case k.Type == core.KeyCtrlC:
		return core.ActionQuit
	case k.Type == core.KeyEsc && f.store.Snapshot().View == state.ViewLogin:
		return core.ActionQuit
	case k.Type == core.KeyRunes && string(k.Runes) == "q" && !f.store.Snapshot().IsInputMode():
		return core.ActionQuit
	}
	return core.ActionNone
}

func (f *fakeController) Login(username, password, server string) {
	f.mu.Lock()
	f.logins = append(f.logins, loginCall{username, password, server})
	fn := f.onLogin
	f.mu.Unlock()
	if fn != nil {
		fn(username, password, server)
	}
}

func (f *fakeController) Snapshot() state.AppState { return f.store.Snapshot() }

func (f *fakeController) Changes() <-chan struct{} { return f.store.Changes() }

func (f *fakeController) recordedKeys() []core.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Key(nil), f.keys...)
}

func (f *fakeController) recordedLogins() []loginCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]loginCall(nil), f.logins...)
}

// signIn puts the store into the logged-in main view with some data.
func (f *fakeController) signIn() {
	f.store.SetCurrentUser(&chat.User{ID: "@alice:nok.local", Name: "alice", Status: chat.UserStatusOnline})
	f.store.SetRooms([]chat.Room{
		{ID: "!general:nok.local", Name: "general", Members: []string{"@alice:nok.local", "@bob:nok.local"}},
		{ID: "!random:nok.local", Name: "random"},
	})
	f.store.SetUsers([]chat.User{
		{ID: "@alice:nok.local", Name: "alice", Status: chat.UserStatusOnline},
		{ID: "@bob:nok.local", Name: "bob", Status: chat.UserStatusAway},
	})
	f.store.SetConnectionStatus(state.StatusConnected)
	f.store.SetView(state.ViewMain)
}

// testTime returns a fixed local timestamp so rendered clocks are stable.
func testTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}
