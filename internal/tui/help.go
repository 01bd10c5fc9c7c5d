package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// helpSections lists the bindings shown in the help overlay, grouped by
// where they apply. Each row is {keys, description}.
var helpSections = []struct {
	title string
	rows  [][2]string
}{
	{"Navigation", [][2]string{
		{"Tab / Shift+Tab", "Cycle pane focus"},
		{"↑ / k, ↓ / j", "Move selection"},
		{"Enter", "Join room / knock user"},
		{"K", "Knock selected user"},
		{"r", "Refresh rooms and users"},
		{"s", "Settings"},
		{"L", "Log out"},
		{"q / Ctrl+C", "Quit"},
		{"?", "Toggle help"},
	}},
	{"Compose", [][2]string{
		{"i", "Start composing (messages pane)"},
		{"Esc", "Cancel compose / back"},
		{"/join <room>", "Join a room"},
		{"/knock <user> [text]", "Knock a user"},
		{"/refresh, /logout", "Refresh or log out"},
		{"//text", "Send text starting with /"},
	}},
}

// RenderHelp renders the key reference centred in a width x height area.
func RenderHelp(width, height int) string {
	keyWidth := 0
	for _, sec := range helpSections {
		for _, row := range sec.rows {
			keyWidth = max(keyWidth, runewidth.StringWidth(row[0]))
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("⌨ Keys"))
	for _, sec := range helpSections {
		b.WriteString("\n\n" + labelStyle.Render(sec.title))
		for _, row := range sec.rows {
			b.WriteString("\n" + helpKeyStyle.Render(padToWidth(row[0], keyWidth)) + "  " + helpDescStyle.Render(row[1]))
		}
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpStyle.Render(b.String()))
}
