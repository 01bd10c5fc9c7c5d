package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/nok/internal/state"
)

// StatusIndicator shows the connection status, with a bouncing bar while
// connecting.
type StatusIndicator struct {
	status    state.ConnectionStatus
	position  int
	direction int
	width     int
}

// StatusTickMsg animates the indicator.
type StatusTickMsg time.Time

// NewStatusIndicator creates an indicator for a disconnected client.
func NewStatusIndicator() StatusIndicator {
	return StatusIndicator{
		status:    state.StatusDisconnected,
		direction: 1,
		width:     8,
	}
}

// SetStatus changes the displayed status.
func (s *StatusIndicator) SetStatus(status state.ConnectionStatus) {
	s.status = status
}

// Init starts the animation.
func (s StatusIndicator) Init() tea.Cmd {
	return s.tick()
}

// Update advances the bar on every tick while connecting.
func (s StatusIndicator) Update(msg tea.Msg) (StatusIndicator, tea.Cmd) {
	if _, ok := msg.(StatusTickMsg); !ok {
		return s, nil
	}
	if s.status == state.StatusConnecting {
		s.position += s.direction
		if s.position >= s.width-1 {
			s.position = s.width - 1
			s.direction = -1
		} else if s.position <= 0 {
			s.position = 0
			s.direction = 1
		}
	}
	return s, s.tick()
}

func (s StatusIndicator) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return StatusTickMsg(t)
	})
}

// View renders the indicator.
func (s StatusIndicator) View() string {
	style := ConnectionStyle(s.status)
	switch s.status {
	case state.StatusConnected:
		return style.Render("● ONLINE")
	case state.StatusError:
		return style.Render("✖ ERROR")
	case state.StatusConnecting:
		var bar strings.Builder
		bar.WriteString("▐")
		for i := 0; i < s.width; i++ {
			if i == s.position {
				bar.WriteString("█")
			} else {
				bar.WriteString("░")
			}
		}
		bar.WriteString("▌")
		return style.Render("⬥ CONNECTING " + bar.String())
	default:
		return lipgloss.NewStyle().Foreground(colorMuted).Render("⬦ OFFLINE")
	}
}
