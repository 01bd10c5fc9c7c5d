// Package state holds the single application snapshot rendered by the TUI
// and the operations allowed to change it.
package state

import (
	"slices"

	"github.com/xonecas/nok/internal/chat"
)

// View is the top-level screen.
type View int

const (
	ViewLogin View = iota
	ViewMain
	ViewSettings
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewMain:
		return "main"
	case ViewSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Pane is one of the four regions of the main view.
type Pane int

const (
	PaneRooms Pane = iota
	PaneUsers
	PaneMessages
	PaneStatus
)

// paneOrder is the fixed focus cycle.
var paneOrder = [...]Pane{PaneRooms, PaneUsers, PaneMessages, PaneStatus}

func (p Pane) String() string {
	switch p {
	case PaneRooms:
		return "rooms"
	case PaneUsers:
		return "users"
	case PaneMessages:
		return "messages"
	case PaneStatus:
		return "status"
	default:
		return "unknown"
	}
}

func (p Pane) valid() bool {
	return p >= PaneRooms && p <= PaneStatus
}

// InputMode decides whether keystrokes navigate or compose text.
type InputMode int

const (
	InputNavigation InputMode = iota
	InputComposition
)

func (m InputMode) String() string {
	if m == InputComposition {
		return "composition"
	}
	return "navigation"
}

// ConnectionStatus is the state of the backend session.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// AppState is the whole client state. Values obtained from Store.Snapshot
// are copies; changing them has no effect on the store.
type AppState struct {
	View             View
	CurrentUser      *chat.User
	CurrentRoom      *chat.Room
	FocusedPane      Pane
	InputMode        InputMode
	ConnectionStatus ConnectionStatus

	Users    []chat.User
	Rooms    []chat.Room
	Messages []chat.Message

	SelectedRoom    int
	SelectedUser    int
	SelectedMessage int

	InputValue string
	Error      string

	// Notification is the active banner; NotificationGen identifies which
	// Notify call produced it.
	Notification    string
	NotificationGen uint64

	LoggingIn bool

	notifySeq uint64
}

// Initial returns the state the store starts with.
func Initial() AppState {
	return AppState{
		View:             ViewLogin,
		FocusedPane:      PaneRooms,
		InputMode:        InputNavigation,
		ConnectionStatus: StatusDisconnected,
	}
}

// Clone returns a deep copy of s.
func (s AppState) Clone() AppState {
	c := s
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		c.CurrentUser = &u
	}
	if s.CurrentRoom != nil {
		r := s.CurrentRoom.Clone()
		c.CurrentRoom = &r
	}
	c.Users = slices.Clone(s.Users)
	c.Messages = slices.Clone(s.Messages)
	if s.Rooms != nil {
		c.Rooms = make([]chat.Room, len(s.Rooms))
		for i, r := range s.Rooms {
			c.Rooms[i] = r.Clone()
		}
	}
	return c
}

// IsInputMode reports whether keystrokes are being composed into text.
func (s AppState) IsInputMode() bool {
	return s.InputMode == InputComposition
}

// SelectedRoomItem returns the room under the room cursor.
func (s AppState) SelectedRoomItem() (chat.Room, bool) {
	if s.SelectedRoom < 0 || s.SelectedRoom >= len(s.Rooms) {
		return chat.Room{}, false
	}
	return s.Rooms[s.SelectedRoom], true
}

// SelectedUserItem returns the user under the user cursor.
func (s AppState) SelectedUserItem() (chat.User, bool) {
	if s.SelectedUser < 0 || s.SelectedUser >= len(s.Users) {
		return chat.User{}, false
	}
	return s.Users[s.SelectedUser], true
}

// CurrentRoomID returns the active room ID or "".
func (s AppState) CurrentRoomID() string {
	if s.CurrentRoom == nil {
		return ""
	}
	return s.CurrentRoom.ID
}

// SetView switches the active screen. Leaving Main ends composition.
func (s *AppState) SetView(v View) bool {
	if s.View == v {
		return false
	}
	s.View = v
	return true
}

// SetCurrentUser replaces the logged-in user; nil clears it.
func (s *AppState) SetCurrentUser(u *chat.User) bool {
	if s.CurrentUser == nil && u == nil {
		return false
	}
	if s.CurrentUser != nil && u != nil && *s.CurrentUser == *u {
		return false
	}
	if u == nil {
		s.CurrentUser = nil
		return true
	}
	cp := *u
	s.CurrentUser = &cp
	return true
}

// SetCurrentRoom activates the room with r's ID. Rooms that are not in the
// room list are rejected; nil clears the active room.
func (s *AppState) SetCurrentRoom(r *chat.Room) bool {
	if r == nil {
		if s.CurrentRoom == nil {
			return false
		}
		s.CurrentRoom = nil
		return true
	}
	idx := s.roomIndex(r.ID)
	if idx < 0 {
		return false
	}
	if s.CurrentRoom != nil && s.CurrentRoom.ID == r.ID && roomEqual(*s.CurrentRoom, s.Rooms[idx]) {
		return false
	}
	cp := s.Rooms[idx].Clone()
	s.CurrentRoom = &cp
	return true
}

// SetFocusedPane moves focus. Moving away from Messages ends composition.
func (s *AppState) SetFocusedPane(p Pane) bool {
	if !p.valid() || s.FocusedPane == p {
		return false
	}
	s.FocusedPane = p
	return true
}

// SetInputMode enters or leaves composition. Composition is only entered
// from the Messages pane of the main view.
func (s *AppState) SetInputMode(m InputMode) bool {
	if s.InputMode == m {
		return false
	}
	if m == InputComposition && !s.canCompose() {
		return false
	}
	s.InputMode = m
	return true
}

// SetConnectionStatus records the backend session state.
func (s *AppState) SetConnectionStatus(cs ConnectionStatus) bool {
	if s.ConnectionStatus == cs {
		return false
	}
	s.ConnectionStatus = cs
	return true
}

// SetUsers replaces the user list.
func (s *AppState) SetUsers(users []chat.User) bool {
	if slices.Equal(s.Users, users) {
		return false
	}
	s.Users = slices.Clone(users)
	return true
}

// SetRooms replaces the room list. The active room is refreshed from the
// new list, or cleared when it is no longer present.
func (s *AppState) SetRooms(rooms []chat.Room) bool {
	if slices.EqualFunc(s.Rooms, rooms, roomEqual) {
		return false
	}
	s.Rooms = make([]chat.Room, len(rooms))
	for i, r := range rooms {
		s.Rooms[i] = r.Clone()
	}
	return true
}

// SetMessages replaces the timeline.
func (s *AppState) SetMessages(msgs []chat.Message) bool {
	if slices.Equal(s.Messages, msgs) {
		return false
	}
	s.Messages = slices.Clone(msgs)
	return true
}

// AddMessage appends msg to the timeline.
func (s *AppState) AddMessage(msg chat.Message) bool {
	s.Messages = append(s.Messages, msg)
	return true
}

// SetSelectedRoom moves the room cursor, clamped to the list.
func (s *AppState) SetSelectedRoom(i int) bool {
	return setIndex(&s.SelectedRoom, i, len(s.Rooms))
}

// SetSelectedUser moves the user cursor, clamped to the list.
func (s *AppState) SetSelectedUser(i int) bool {
	return setIndex(&s.SelectedUser, i, len(s.Users))
}

// SetSelectedMessage moves the message cursor, clamped to the list.
func (s *AppState) SetSelectedMessage(i int) bool {
	return setIndex(&s.SelectedMessage, i, len(s.Messages))
}

// ResetSelections moves every cursor back to the top.
func (s *AppState) ResetSelections() bool {
	if s.SelectedRoom == 0 && s.SelectedUser == 0 && s.SelectedMessage == 0 {
		return false
	}
	s.SelectedRoom, s.SelectedUser, s.SelectedMessage = 0, 0, 0
	return true
}

// SetInputValue replaces the composition buffer. Ignored outside composition.
func (s *AppState) SetInputValue(v string) bool {
	if s.InputValue == v || (s.InputMode != InputComposition && v != "") {
		return false
	}
	s.InputValue = v
	return true
}

// AppendInput adds text to the composition buffer.
func (s *AppState) AppendInput(text string) bool {
	if text == "" {
		return false
	}
	return s.SetInputValue(s.InputValue + text)
}

// DeleteInput removes the last rune of the composition buffer.
func (s *AppState) DeleteInput() bool {
	if s.InputValue == "" {
		return false
	}
	r := []rune(s.InputValue)
	return s.SetInputValue(string(r[:len(r)-1]))
}

// SetError records a user-visible error; "" clears it.
func (s *AppState) SetError(msg string) bool {
	if s.Error == msg {
		return false
	}
	s.Error = msg
	return true
}

// SetNotification shows text as the active banner and returns the
// generation that identifies it. "" clears the banner.
func (s *AppState) SetNotification(text string) uint64 {
	s.notifySeq++
	s.Notification = text
	s.NotificationGen = s.notifySeq
	return s.notifySeq
}

// ClearNotification removes the banner only if it is still the one set
// with generation gen.
func (s *AppState) ClearNotification(gen uint64) bool {
	if s.Notification == "" || s.NotificationGen != gen {
		return false
	}
	s.Notification = ""
	return true
}

// SetLoggingIn marks whether a login is in flight.
func (s *AppState) SetLoggingIn(v bool) bool {
	if s.LoggingIn == v {
		return false
	}
	s.LoggingIn = v
	return true
}

// normalize re-establishes every invariant after a mutation.
func (s *AppState) normalize() {
	clampIndex(&s.SelectedRoom, len(s.Rooms))
	clampIndex(&s.SelectedUser, len(s.Users))
	clampIndex(&s.SelectedMessage, len(s.Messages))

	if s.CurrentRoom != nil {
		if idx := s.roomIndex(s.CurrentRoom.ID); idx < 0 {
			s.CurrentRoom = nil
		} else if !roomEqual(*s.CurrentRoom, s.Rooms[idx]) {
			cp := s.Rooms[idx].Clone()
			s.CurrentRoom = &cp
		}
	}

	if s.InputMode == InputComposition && !s.canCompose() {
		s.InputMode = InputNavigation
	}
	if s.InputMode != InputComposition {
		s.InputValue = ""
	}
}

func (s *AppState) canCompose() bool {
	return s.View == ViewMain && s.FocusedPane == PaneMessages
}

func (s *AppState) roomIndex(id string) int {
	return slices.IndexFunc(s.Rooms, func(r chat.Room) bool { return r.ID == id })
}

func roomEqual(a, b chat.Room) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Alias == b.Alias && a.Topic == b.Topic &&
		a.AvatarURL == b.AvatarURL && slices.Equal(a.Members, b.Members)
}

func setIndex(idx *int, i, n int) bool {
	clampIndex(&i, n)
	if *idx == i {
		return false
	}
	*idx = i
	return true
}

func clampIndex(idx *int, n int) {
	if n <= 0 || *idx < 0 {
		*idx = 0
		return
	}
	if *idx > n-1 {
		*idx = n - 1
	}
}
