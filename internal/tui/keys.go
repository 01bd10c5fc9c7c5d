package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xonecas/nok/internal/core"
)

// Key bindings the renderer handles itself. Everything else goes through
// the controller.
var keys = struct {
	Help      key.Binding
	Quit      key.Binding
	Escape    key.Binding
	Submit    key.Binding
	NextField key.Binding
	PrevField key.Binding
}{
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Escape:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "log in")),
	NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
}

// translateKey converts a bubbletea key message into a controller key.
func translateKey(msg tea.KeyMsg) core.Key {
	switch msg.Type {
	case tea.KeyEnter:
		return core.Key{Type: core.KeyEnter, Alt: msg.Alt}
	case tea.KeyEsc:
		return core.Key{Type: core.KeyEsc}
	case tea.KeyTab:
		return core.Key{Type: core.KeyTab}
	case tea.KeyShiftTab:
		return core.Key{Type: core.KeyShiftTab}
	case tea.KeyBackspace:
		return core.Key{Type: core.KeyBackspace, Alt: msg.Alt}
	case tea.KeyUp:
		return core.Key{Type: core.KeyUp}
	case tea.KeyDown:
		return core.Key{Type: core.KeyDown}
	case tea.KeyCtrlC:
		return core.Key{Type: core.KeyCtrlC, Ctrl: true}
	case tea.KeySpace:
		return core.Key{Type: core.KeyRunes, Runes: []rune{' '}, Alt: msg.Alt}
	case tea.KeyRunes:
		return core.Key{Type: core.KeyRunes, Runes: msg.Runes, Alt: msg.Alt}
	default:
		return core.Key{Type: core.KeyOther, Alt: msg.Alt, Ctrl: strings.HasPrefix(msg.String(), "ctrl+")}
	}
}
