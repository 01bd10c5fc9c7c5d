package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldServer = iota
	fieldUsername
	fieldPassword
	fieldCount
)

// LoginForm collects the server, username and password.
type LoginForm struct {
	fields [fieldCount]textinput.Model
	focus  int
	// needsPassword is false for backends without passwords.
	needsPassword bool
}

// NewLoginForm creates a form prefilled with server and username.
func NewLoginForm(server, username string, needsPassword bool) LoginForm {
	var f LoginForm
	f.needsPassword = needsPassword

	placeholders := [fieldCount]string{"http://localhost:6167", "username", "password"}
	prompts := [fieldCount]string{"Server   ", "Username ", "Password "}
	for i := range f.fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Prompt = inputPromptStyle.Render(prompts[i])
		ti.CharLimit = 256
		ti.Width = 40
		f.fields[i] = ti
	}
	f.fields[fieldPassword].EchoMode = textinput.EchoPassword
	f.fields[fieldPassword].EchoCharacter = '•'
	f.fields[fieldServer].SetValue(server)
	f.fields[fieldUsername].SetValue(username)

	// Start on the first empty field.
	f.focus = fieldUsername
	if server == "" {
		f.focus = fieldServer
	} else if username != "" && needsPassword {
		f.focus = fieldPassword
	}
	f.fields[f.focus].Focus()
	return f
}

func (f LoginForm) visibleFields() int {
	if f.needsPassword {
		return fieldCount
	}
	return fieldPassword
}

// Server returns the trimmed server URL.
func (f LoginForm) Server() string { return strings.TrimSpace(f.fields[fieldServer].Value()) }

// Username returns the trimmed username.
func (f LoginForm) Username() string { return strings.TrimSpace(f.fields[fieldUsername].Value()) }

// Password returns the password as typed.
func (f LoginForm) Password() string { return f.fields[fieldPassword].Value() }

// Ready reports whether the form can be submitted.
func (f LoginForm) Ready() bool {
	if f.Server() == "" || f.Username() == "" {
		return false
	}
	return !f.needsPassword || f.Password() != ""
}

// Focused returns the index of the focused field.
func (f LoginForm) Focused() int { return f.focus }

func (f *LoginForm) move(delta int) {
	n := f.visibleFields()
	f.fields[f.focus].Blur()
	f.focus = (f.focus + delta + n) % n
	f.fields[f.focus].Focus()
}

// Update handles field navigation and typing. It reports submit when Enter
// is pressed on a complete form.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd, bool) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, keys.Submit):
			if f.Ready() {
				return f, nil, true
			}
			f.move(1)
			return f, textinput.Blink, false
		case key.Matches(keyMsg, keys.NextField):
			f.move(1)
			return f, textinput.Blink, false
		case key.Matches(keyMsg, keys.PrevField):
			f.move(-1)
			return f, textinput.Blink, false
		}
	}

	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return f, cmd, false
}

// SetWidth sets the width of every field.
func (f *LoginForm) SetWidth(width int) {
	w := min(max(width-20, 10), 60)
	for i := range f.fields {
		f.fields[i].Width = w
	}
}

// View renders the form. status is shown under the fields.
func (f LoginForm) View(status string) string {
	lines := []string{titleStyle.Render("⬢ nok"), dimmedStyle.Render("knock knock, who's there?"), ""}
	for i := 0; i < f.visibleFields(); i++ {
		lines = append(lines, f.fields[i].View())
	}
	lines = append(lines, "")
	if status != "" {
		lines = append(lines, status)
	}
	lines = append(lines, dimmedStyle.Render("enter log in • tab next field • esc quit"))
	return helpStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
