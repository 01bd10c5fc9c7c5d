package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

// Palette.
var (
	colorBrand    = lipgloss.Color("#9D00FF")
	colorTeal     = lipgloss.Color("#00FFCC")
	colorBrandDim = lipgloss.Color("#6B00B3")

	colorSelf   = lipgloss.Color("#00FF66")
	colorOther  = lipgloss.Color("#00CCFF")
	colorKnock  = lipgloss.Color("#FFCC00")
	colorNotice = lipgloss.Color("#FF00CC")

	colorWarning = lipgloss.Color("#FF6600")
	colorError   = lipgloss.Color("#FF3366")
	colorSuccess = lipgloss.Color("#00FF66")
	colorMuted   = lipgloss.Color("#5555AA")

	colorBg      = lipgloss.Color("#08080F")
	colorBgPanel = lipgloss.Color("#14141F")
	colorBorder  = lipgloss.Color("#2A2A55")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func boldFg(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

func boxed(border lipgloss.Border, c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(border).BorderForeground(c)
}

var (
	headerStyle = boldFg(colorBrand)
	titleStyle  = boldFg(colorBrand)

	paneStyle        = boxed(lipgloss.RoundedBorder(), colorBorder)
	paneFocusedStyle = boxed(lipgloss.DoubleBorder(), colorTeal)
	paneTitleStyle   = boldFg(colorTeal)

	itemStyle         = fg(colorTeal)
	itemSelectedStyle = boldFg(colorBg).Background(colorBrand)
	itemCurrentStyle  = boldFg(colorSuccess)

	senderSelfStyle  = boldFg(colorSelf)
	senderOtherStyle = boldFg(colorOther)
	knockStyle       = boldFg(colorKnock)
	noticeStyle      = fg(colorNotice).Italic(true)
	timestampStyle   = fg(colorMuted)

	inputStyle       = boxed(lipgloss.RoundedBorder(), colorBrandDim).Padding(0, 1)
	inputActiveStyle = boxed(lipgloss.RoundedBorder(), colorTeal).Padding(0, 1)
	inputPromptStyle = boldFg(colorBrand)

	// Overlays: help, settings and the login box.
	helpStyle     = boxed(lipgloss.DoubleBorder(), colorBrand).Background(colorBgPanel).Padding(1, 2)
	helpKeyStyle  = boldFg(colorTeal)
	helpDescStyle = fg(colorMuted)

	labelStyle        = fg(colorMuted)
	valueStyle        = boldFg(colorBrand)
	dimmedStyle       = fg(colorMuted)
	errorStyle        = boldFg(colorError)
	notificationStyle = boldFg(colorKnock)
)

// PresenceStyle returns the style for a user's presence dot.
func PresenceStyle(status chat.UserStatus) lipgloss.Style {
	switch status {
	case chat.UserStatusOnline:
		return fg(colorSuccess)
	case chat.UserStatusAway:
		return fg(colorKnock)
	case chat.UserStatusBusy:
		return fg(colorWarning)
	default:
		return fg(colorMuted)
	}
}

// ConnectionStyle returns the style for a connection status label.
func ConnectionStyle(status state.ConnectionStatus) lipgloss.Style {
	switch status {
	case state.StatusConnected:
		return boldFg(colorSuccess)
	case state.StatusConnecting:
		return boldFg(colorTeal)
	case state.StatusError:
		return errorStyle
	default:
		return dimmedStyle
	}
}

// renderSectionTitle renders "⬧─ TITLE ─⬧" padded with dashes to width.
func renderSectionTitle(title string, width int) string {
	label := " " + title + " "
	dashes := width - lipgloss.Width(label) - 4
	if dashes < 0 {
		return truncateWithEllipsis(title, width)
	}
	half := dashes / 2
	return paneTitleStyle.Render("⬧─" + strings.Repeat("─", half) + label + strings.Repeat("─", dashes-half) + "─⬧")
}

// truncateWithEllipsis cuts s to maxWidth display columns.
func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// padToWidth right-pads s with spaces to width display columns.
func padToWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func formatClock(ts time.Time) string {
	if ts.IsZero() {
		return "--:--"
	}
	return ts.Local().Format("15:04")
}
