package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

// InputController routes keystrokes by view, input mode and focused pane.
// It mutates selection state directly and hands everything that touches
// the network to the dispatcher as a background task.
type InputController struct {
	store      *state.Store
	dispatcher *Dispatcher
	tasks      *Tasks
}

// NewInputController creates an input controller.
func NewInputController(s *state.Store, d *Dispatcher, t *Tasks) *InputController {
	return &InputController{store: s, dispatcher: d, tasks: t}
}

// HandleKey applies k and reports what the renderer should do next.
func (c *InputController) HandleKey(k Key) Action {
	snap := c.store.Snapshot()

	switch snap.View {
	case state.ViewLogin:
		if k.Type == KeyEsc || k.Type == KeyCtrlC {
			return ActionQuit
		}
		return ActionNone
	case state.ViewSettings:
		switch {
		case k.Type == KeyEsc:
			c.store.SetView(state.ViewMain)
		case k.Type == KeyCtrlC, k.is('q'):
			return ActionQuit
		}
		return ActionNone
	}

	if snap.IsInputMode() {
		c.handleComposition(k)
		return ActionNone
	}
	return c.handleNavigation(k, snap)
}

func (c *InputController) handleComposition(k Key) {
	switch k.Type {
	case KeyEsc:
		c.store.SetInputMode(state.InputNavigation)
	case KeyEnter:
		var text string
		c.store.Update(func(st *state.AppState) {
			text = strings.TrimSpace(st.InputValue)
			st.SetInputMode(state.InputNavigation)
		})
		if text != "" {
			c.submit(text)
		}
	case KeyBackspace:
		c.store.Update(func(st *state.AppState) { st.DeleteInput() })
	case KeyRunes:
		if k.Alt || k.Ctrl {
			return
		}
		c.store.Update(func(st *state.AppState) { st.AppendInput(string(k.Runes)) })
	}
}

func (c *InputController) handleNavigation(k Key, snap state.AppState) Action {
	switch {
	case k.Type == KeyCtrlC, k.is('q'):
		return ActionQuit
	case k.Type == KeyTab:
		c.store.CycleFocus()
	case k.Type == KeyShiftTab:
		c.store.CycleFocusBack()
	case k.Type == KeyUp, k.is('k'):
		c.store.NavigateUp()
	case k.Type == KeyDown, k.is('j'):
		c.store.NavigateDown()
	case k.is('i'):
		if snap.FocusedPane == state.PaneMessages {
			c.store.SetInputMode(state.InputComposition)
		}
	case k.is('s'):
		c.store.SetView(state.ViewSettings)
	case k.is('r'):
		c.refresh()
	case k.is('L'):
		c.logout()
	case k.Type == KeyEnter && snap.FocusedPane == state.PaneRooms:
		if room, ok := snap.SelectedRoomItem(); ok {
			c.enterRoom(room)
		}
	case k.Type == KeyEnter && snap.FocusedPane == state.PaneUsers, k.is('K') && snap.FocusedPane == state.PaneUsers:
		if user, ok := snap.SelectedUserItem(); ok {
			c.knock(user.ID, chat.DefaultKnockText)
		}
	}
	return ActionNone
}

// submit sends a composed line, or runs it when it is a slash command.
// A leading "//" sends the rest literally.
func (c *InputController) submit(text string) {
	if strings.HasPrefix(text, "//") {
		c.send(text[1:])
		return
	}
	if !strings.HasPrefix(text, "/") {
		c.send(text)
		return
	}

	name, args, _ := strings.Cut(text[1:], " ")
	args = strings.TrimSpace(args)

	switch name {
	case "join":
		if args == "" {
			c.store.SetError("Usage: /join <room>")
			return
		}
		c.tasks.Go("join", func(ctx context.Context) {
			_ = c.dispatcher.JoinRoom(ctx, args)
		})
	case "knock":
		user, msg, _ := strings.Cut(args, " ")
		if user == "" {
			c.store.SetError("Usage: /knock <user> [message]")
			return
		}
		msg = strings.TrimSpace(msg)
		if msg == "" {
			msg = chat.DefaultKnockText
		}
		c.knock(user, msg)
	case "refresh":
		c.refresh()
	case "logout":
		c.logout()
	default:
		c.store.SetError(fmt.Sprintf("Unknown command: /%s", name))
	}
}

func (c *InputController) send(text string) {
	c.tasks.Go("send", func(ctx context.Context) {
		_ = c.dispatcher.SendMessage(ctx, text)
	})
}

func (c *InputController) enterRoom(room chat.Room) {
	c.store.SetCurrentRoom(&room)
	c.tasks.Go("join", func(ctx context.Context) {
		if err := c.dispatcher.JoinRoom(ctx, room.ID); err == nil {
			c.dispatcher.RefreshUsers(ctx)
		}
	})
}

func (c *InputController) knock(userID, text string) {
	c.tasks.Go("knock", func(ctx context.Context) {
		_ = c.dispatcher.SendKnock(ctx, userID, text)
	})
}

func (c *InputController) refresh() {
	c.tasks.Go("refresh", func(ctx context.Context) {
		c.dispatcher.RefreshRooms(ctx)
		c.dispatcher.RefreshUsers(ctx)
	})
}

func (c *InputController) logout() {
	c.tasks.Go("logout", func(ctx context.Context) {
		c.dispatcher.Logout(ctx)
	})
}
