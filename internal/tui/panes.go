package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

const (
	sidebarWidth     = 28
	statusPaneHeight = 7
	minBodyHeight    = 10
)

// renderMain renders the four-pane main view.
func renderMain(st state.AppState, ind StatusIndicator, width, height int) string {
	header := renderHeader(st, ind, width)
	input := renderInput(st, width)

	bodyHeight := max(height-lipgloss.Height(header)-lipgloss.Height(input), minBodyHeight)
	side := min(sidebarWidth, width/3)
	mainWidth := width - side

	roomsHeight := bodyHeight / 2
	usersHeight := bodyHeight - roomsHeight
	statusHeight := min(statusPaneHeight, bodyHeight/2)
	messagesHeight := bodyHeight - statusHeight

	left := lipgloss.JoinVertical(lipgloss.Left,
		renderRooms(st, side, roomsHeight),
		renderUsers(st, side, usersHeight),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		renderMessages(st, mainWidth, messagesHeight),
		renderStatus(st, ind, mainWidth, statusHeight),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input)
}

func renderHeader(st state.AppState, ind StatusIndicator, width int) string {
	left := headerStyle.Render("⬢ nok") + "  " + ind.View()
	mode := ""
	if st.IsInputMode() {
		mode = inputPromptStyle.Render("-- COMPOSE --")
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(mode)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + mode
}

// renderPane draws a bordered box of exactly width x height cells. lines
// must already fit the inner width.
func renderPane(title string, lines []string, focused bool, width, height int) string {
	style := paneStyle
	if focused {
		style = paneFocusedStyle
	}
	innerWidth := max(width-2, 1)
	innerHeight := max(height-2, 1)

	content := make([]string, 0, innerHeight)
	content = append(content, renderSectionTitle(title, innerWidth))
	for _, l := range lines {
		if len(content) == innerHeight {
			break
		}
		content = append(content, l)
	}
	return style.Width(innerWidth).Height(innerHeight).Render(strings.Join(content, "\n"))
}

// visibleRange returns the [start, end) window of n items, rows tall, that
// keeps selected in view.
func visibleRange(n, selected, rows int) (int, int) {
	if rows <= 0 || n == 0 {
		return 0, 0
	}
	if n <= rows {
		return 0, n
	}
	start := max(0, min(selected-rows/2, n-rows))
	return start, start + rows
}

func renderItem(label string, selected, focused bool, width int) string {
	label = padToWidth(truncateWithEllipsis(label, width), width)
	switch {
	case selected && focused:
		return itemSelectedStyle.Render(label)
	case selected:
		return itemCurrentStyle.Render(label)
	default:
		return itemStyle.Render(label)
	}
}

func renderRooms(st state.AppState, width, height int) string {
	focused := st.FocusedPane == state.PaneRooms
	inner := max(width-2, 1)
	rows := max(height-3, 0)
	current := st.CurrentRoomID()

	var lines []string
	if len(st.Rooms) == 0 {
		lines = append(lines, dimmedStyle.Render(truncateWithEllipsis("no rooms (r to refresh)", inner)))
	}
	start, end := visibleRange(len(st.Rooms), st.SelectedRoom, rows)
	for i := start; i < end; i++ {
		r := st.Rooms[i]
		marker := "  "
		if r.ID == current {
			marker = "▸ "
		}
		lines = append(lines, renderItem(marker+"# "+r.Name, i == st.SelectedRoom, focused, inner))
	}
	return renderPane(fmt.Sprintf("ROOMS %d", len(st.Rooms)), lines, focused, width, height)
}

func renderUsers(st state.AppState, width, height int) string {
	focused := st.FocusedPane == state.PaneUsers
	inner := max(width-2, 1)
	rows := max(height-3, 0)
	self := ""
	if st.CurrentUser != nil {
		self = st.CurrentUser.ID
	}

	var lines []string
	if len(st.Users) == 0 {
		lines = append(lines, dimmedStyle.Render(truncateWithEllipsis("no users", inner)))
	}
	start, end := visibleRange(len(st.Users), st.SelectedUser, rows)
	for i := start; i < end; i++ {
		u := st.Users[i]
		name := u.Name
		if name == "" {
			name = u.ID
		}
		if u.ID == self {
			name += " (you)"
		}
		dot := PresenceStyle(u.Status).Render("●")
		lines = append(lines, dot+" "+renderItem(name, i == st.SelectedUser, focused, inner-2))
	}
	return renderPane(fmt.Sprintf("USERS %d", len(st.Users)), lines, focused, width, height)
}

func renderMessages(st state.AppState, width, height int) string {
	focused := st.FocusedPane == state.PaneMessages
	inner := max(width-2, 1)
	rows := max(height-3, 0)
	textWidth := max(inner-2, 1)

	title := "MESSAGES"
	if st.CurrentRoom != nil {
		title += " · #" + st.CurrentRoom.Name
	}

	n := len(st.Messages)
	selected := st.SelectedMessage
	if !focused {
		selected = n - 1
	}
	start, end := visibleRange(n, selected, rows)

	var lines []string
	if n == 0 {
		lines = append(lines, dimmedStyle.Render(truncateWithEllipsis("no messages yet", textWidth)))
	}
	current := st.CurrentRoomID()
	roomNames := make(map[string]string, len(st.Rooms))
	for _, r := range st.Rooms {
		roomNames[r.ID] = r.Name
	}
	for i := start; i < end; i++ {
		line := formatMessage(st.Messages[i], st.CurrentUser, current, roomNames, textWidth)
		if focused && i == st.SelectedMessage {
			line = itemSelectedStyle.Render(padToWidth(plainMessage(st.Messages[i], current, roomNames, textWidth), textWidth))
		}
		lines = append(lines, line)
	}

	if n > rows && rows > 0 {
		bar := strings.Split(renderScrollbar(rows, n, start), "\n")
		for i := range lines {
			gap := max(textWidth-lipgloss.Width(lines[i]), 0)
			lines[i] += strings.Repeat(" ", gap+1) + bar[i]
		}
	}
	return renderPane(title, lines, focused, width, height)
}

// messageText is the unstyled one-line form of m.
func messageText(m chat.Message, current string, roomNames map[string]string) (prefix, sender, body string) {
	prefix = formatClock(m.Timestamp) + " "
	if m.RoomID != "" && m.RoomID != current {
		if name, ok := roomNames[m.RoomID]; ok {
			prefix += "#" + name + " "
		}
	}
	body = strings.ReplaceAll(m.Content, "\n", " ")
	switch m.Type {
	case chat.MessageTypeKnock:
		return prefix, "🔔 " + m.From(), "knocked: " + body
	case chat.MessageTypeEmote:
		return prefix, "* " + m.From(), body
	default:
		return prefix, m.From() + ":", body
	}
}

func plainMessage(m chat.Message, current string, roomNames map[string]string, width int) string {
	prefix, sender, body := messageText(m, current, roomNames)
	return truncateWithEllipsis(prefix+sender+" "+body, width)
}

func formatMessage(m chat.Message, self *chat.User, current string, roomNames map[string]string, width int) string {
	prefix, sender, body := messageText(m, current, roomNames)

	prefixWidth := runewidth.StringWidth(prefix)
	sender = truncateWithEllipsis(sender, max(width-prefixWidth, 0))
	senderWidth := runewidth.StringWidth(sender)
	body = truncateWithEllipsis(body, max(width-prefixWidth-senderWidth-1, 0))

	senderStyle := senderOtherStyle
	if self != nil && m.Sender == self.ID {
		senderStyle = senderSelfStyle
	}
	bodyStyle := lipgloss.NewStyle()
	switch m.Type {
	case chat.MessageTypeKnock:
		senderStyle, bodyStyle = knockStyle, knockStyle
	case chat.MessageTypeNotice:
		bodyStyle = noticeStyle
	}

	out := timestampStyle.Render(prefix) + senderStyle.Render(sender)
	if body != "" {
		out += " " + bodyStyle.Render(body)
	}
	return out
}

func renderStatus(st state.AppState, ind StatusIndicator, width, height int) string {
	focused := st.FocusedPane == state.PaneStatus
	inner := max(width-2, 1)

	field := func(label, value string) string {
		label = labelStyle.Render(label)
		return label + valueStyle.Render(truncateWithEllipsis(value, max(inner-lipgloss.Width(label), 0)))
	}

	user := "-"
	if st.CurrentUser != nil {
		user = st.CurrentUser.Name
		if user != st.CurrentUser.ID {
			user += " (" + st.CurrentUser.ID + ")"
		}
	}
	room := "-"
	if st.CurrentRoom != nil {
		room = "#" + st.CurrentRoom.Name
	}

	lines := []string{
		labelStyle.Render("Connection ") + ind.View(),
		field("User       ", user),
		field("Room       ", room),
	}
	switch {
	case st.Error != "":
		lines = append(lines, errorStyle.Render(truncateWithEllipsis("✖ "+st.Error, inner)))
	case st.Notification != "":
		lines = append(lines, notificationStyle.Render(truncateWithEllipsis(st.Notification, inner)))
	}
	return renderPane("STATUS", lines, focused, width, height)
}

// tailToWidth keeps the end of s that fits in width columns.
func tailToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	w := 0
	i := len(runes)
	for i > 0 {
		rw := runewidth.RuneWidth(runes[i-1])
		if w+rw > width {
			break
		}
		w += rw
		i--
	}
	return string(runes[i:])
}

func renderInput(st state.AppState, width int) string {
	inner := max(width-4, 1)
	if st.IsInputMode() {
		prompt := inputPromptStyle.Render("› ")
		text := tailToWidth(st.InputValue+"█", max(inner-2, 1))
		return inputActiveStyle.Width(width - 2).Render(prompt + text)
	}

	hint := "tab focus • ↑↓ move • enter select • i compose • K knock • s settings • ? help • q quit"
	if st.FocusedPane != state.PaneMessages {
		hint = "focus messages and press i to compose • " + hint
	}
	return inputStyle.Width(width - 2).Render(dimmedStyle.Render(truncateWithEllipsis(hint, inner)))
}

// renderSettings renders the session summary shown in the settings view.
func renderSettings(st state.AppState, opts Options, width, height int) string {
	user := "-"
	if st.CurrentUser != nil {
		user = st.CurrentUser.ID
	}
	rows := [][2]string{
		{"Backend", opts.Backend},
		{"Server", opts.Server},
		{"User", user},
		{"Connection", string(st.ConnectionStatus)},
		{"Rooms", fmt.Sprint(len(st.Rooms))},
		{"Users", fmt.Sprint(len(st.Users))},
		{"Messages", fmt.Sprint(len(st.Messages))},
	}

	lines := []string{titleStyle.Render("⚙ Settings"), ""}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(padToWidth(r[0], 12))+valueStyle.Render(r[1]))
	}
	lines = append(lines, "", dimmedStyle.Render("esc back • q quit"))

	box := helpStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
