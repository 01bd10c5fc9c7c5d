package state

import (
	"sync"

	"github.com/xonecas/nok/internal/chat"
)

// Store is the single owner of AppState. All methods are safe for
// concurrent use; each one is atomic with respect to Snapshot.
type Store struct {
	mu      sync.Mutex
	st      AppState
	changes chan struct{}
}

// NewStore creates a store holding the initial state.
func NewStore() *Store {
	return &Store{
		st:      Initial(),
		changes: make(chan struct{}, 1),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Changes returns a channel that receives a value after state changes.
// Signals coalesce: several mutations between reads produce one receive.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Update runs fn against the live state under the store lock and then
// re-establishes invariants. fn must not call back into the store.
func (s *Store) Update(fn func(*AppState)) {
	s.mu.Lock()
	fn(&s.st)
	s.st.normalize()
	s.mu.Unlock()
	s.signal()
}

// mutate is Update for setters that know whether they changed anything.
func (s *Store) mutate(fn func(*AppState) bool) bool {
	s.mu.Lock()
	changed := fn(&s.st)
	if changed {
		s.st.normalize()
	}
	s.mu.Unlock()
	if changed {
		s.signal()
	}
	return changed
}

func (s *Store) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// SetView switches the screen. See AppState.SetView.
func (s *Store) SetView(v View) bool {
	return s.mutate(func(st *AppState) bool { return st.SetView(v) })
}

// SetCurrentUser records the logged-in user, or nil after logout.
func (s *Store) SetCurrentUser(u *chat.User) bool {
	return s.mutate(func(st *AppState) bool { return st.SetCurrentUser(u) })
}

// SetCurrentRoom makes r the active room.
func (s *Store) SetCurrentRoom(r *chat.Room) bool {
	return s.mutate(func(st *AppState) bool { return st.SetCurrentRoom(r) })
}

// SetFocusedPane moves focus. Moving away from Messages ends composition.
func (s *Store) SetFocusedPane(p Pane) bool {
	return s.mutate(func(st *AppState) bool { return st.SetFocusedPane(p) })
}

// SetInputMode switches between navigation and composition.
func (s *Store) SetInputMode(m InputMode) bool {
	return s.mutate(func(st *AppState) bool { return st.SetInputMode(m) })
}

// SetConnectionStatus sets the connection indicator.
func (s *Store) SetConnectionStatus(cs ConnectionStatus) bool {
	return s.mutate(func(st *AppState) bool { return st.SetConnectionStatus(cs) })
}

// SetUsers replaces the user list.
func (s *Store) SetUsers(users []chat.User) bool {
	return s.mutate(func(st *AppState) bool { return st.SetUsers(users) })
}

// SetRooms replaces the room list and re-syncs the active room.
func (s *Store) SetRooms(rooms []chat.Room) bool {
	return s.mutate(func(st *AppState) bool { return st.SetRooms(rooms) })
}

// SetMessages replaces the timeline.
func (s *Store) SetMessages(msgs []chat.Message) bool {
	return s.mutate(func(st *AppState) bool { return st.SetMessages(msgs) })
}

// AddMessage appends msg to the timeline.
func (s *Store) AddMessage(msg chat.Message) bool {
	return s.mutate(func(st *AppState) bool { return st.AddMessage(msg) })
}

// SetSelectedRoom moves the room cursor, clamped to the list.
func (s *Store) SetSelectedRoom(i int) bool {
	return s.mutate(func(st *AppState) bool { return st.SetSelectedRoom(i) })
}

// SetSelectedUser moves the user cursor, clamped to the list.
func (s *Store) SetSelectedUser(i int) bool {
	return s.mutate(func(st *AppState) bool { return st.SetSelectedUser(i) })
}

// SetSelectedMessage moves the message cursor, clamped to the list.
func (s *Store) SetSelectedMessage(i int) bool {
	return s.mutate(func(st *AppState) bool { return st.SetSelectedMessage(i) })
}

// ResetSelections moves every cursor back to the top.
func (s *Store) ResetSelections() bool {
	return s.mutate(func(st *AppState) bool { return st.ResetSelections() })
}

// SetInputValue replaces the composition buffer. Ignored outside composition.
func (s *Store) SetInputValue(v string) bool {
	return s.mutate(func(st *AppState) bool { return st.SetInputValue(v) })
}

// SetError sets the error line. "" clears it.
func (s *Store) SetError(msg string) bool {
	return s.mutate(func(st *AppState) bool { return st.SetError(msg) })
}

// SetNotification shows text and returns its generation. Pass the
// generation to ClearNotification when the banner expires.
func (s *Store) SetNotification(text string) uint64 {
	var gen uint64
	s.mutate(func(st *AppState) bool {
		gen = st.SetNotification(text)
		return true
	})
	return gen
}

// ClearNotification clears the banner only if gen is still current.
func (s *Store) ClearNotification(gen uint64) bool {
	return s.mutate(func(st *AppState) bool { return st.ClearNotification(gen) })
}

// SetLoggingIn marks a login as in flight.
func (s *Store) SetLoggingIn(v bool) bool {
	return s.mutate(func(st *AppState) bool { return st.SetLoggingIn(v) })
}

// CycleFocus moves focus to the next pane.
func (s *Store) CycleFocus() bool {
	return s.mutate(func(st *AppState) bool { return st.CycleFocus() })
}

// CycleFocusBack moves focus to the previous pane.
func (s *Store) CycleFocusBack() bool {
	return s.mutate(func(st *AppState) bool { return st.CycleFocusBack() })
}

// NavigateUp moves the cursor of the focused pane up.
func (s *Store) NavigateUp() bool {
	return s.mutate(func(st *AppState) bool { return st.NavigateUp() })
}

// NavigateDown moves the cursor of the focused pane down.
func (s *Store) NavigateDown() bool {
	return s.mutate(func(st *AppState) bool { return st.NavigateDown() })
}
