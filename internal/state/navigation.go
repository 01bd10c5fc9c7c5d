package state

// CycleFocus moves focus to the next pane: Rooms, Users, Messages, Status,
// then back to Rooms.
func (s *AppState) CycleFocus() bool {
	return s.SetFocusedPane(paneOrder[(s.paneSlot()+1)%len(paneOrder)])
}

// CycleFocusBack moves focus to the previous pane.
func (s *AppState) CycleFocusBack() bool {
	n := len(paneOrder)
	return s.SetFocusedPane(paneOrder[(s.paneSlot()+n-1)%n])
}

// NavigateUp moves the focused pane's cursor up one item.
func (s *AppState) NavigateUp() bool {
	return s.navigate(-1)
}

// NavigateDown moves the focused pane's cursor down one item.
func (s *AppState) NavigateDown() bool {
	return s.navigate(1)
}

func (s *AppState) navigate(delta int) bool {
	if s.InputMode == InputComposition {
		return false
	}
	switch s.FocusedPane {
	case PaneRooms:
		return s.SetSelectedRoom(s.SelectedRoom + delta)
	case PaneUsers:
		return s.SetSelectedUser(s.SelectedUser + delta)
	case PaneMessages:
		return s.SetSelectedMessage(s.SelectedMessage + delta)
	default:
		return false
	}
}

func (s *AppState) paneSlot() int {
	for i, p := range paneOrder {
		if p == s.FocusedPane {
			return i
		}
	}
	return 0
}
