package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

// Dispatcher runs user commands against the backend and records their
// outcome in the store. Failures become the store's error string.
type Dispatcher struct {
	svc      chat.Service
	store    *state.Store
	notifier *Notifier
	bridge   *Bridge
	timing   Timing

	loggingIn atomic.Bool

	// session counts logouts. Refreshes started in an earlier session are
	// cancelled through sessionDone and their results dropped.
	mu          sync.Mutex
	session     uint64
	sessionDone context.Context
	endSession  context.CancelFunc
}

// NewDispatcher creates a dispatcher. The bridge is started on login and
// stopped on logout.
func NewDispatcher(svc chat.Service, s *state.Store, n *Notifier, b *Bridge, timing Timing) *Dispatcher {
	d := &Dispatcher{
		svc:      svc,
		store:    s,
		notifier: n,
		bridge:   b,
		timing:   timing,
	}
	d.sessionDone, d.endSession = context.WithCancel(context.Background())
	return d
}

// scope derives a context from ctx that also ends with the current
// session, and returns that session.
func (d *Dispatcher) scope(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	d.mu.Lock()
	session, done := d.session, d.sessionDone
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(done, cancel)
	return ctx, session, func() {
		stop()
		cancel()
	}
}

// nextSession cancels work scoped to the current session.
func (d *Dispatcher) nextSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endSession()
	d.session++
	d.sessionDone, d.endSession = context.WithCancel(context.Background())
}

// live reports whether a result fetched in session may still be applied to
// st. It is called under the store lock.
func (d *Dispatcher) live(st *state.AppState, session uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return session == d.session && st.CurrentUser != nil
}

// Login authenticates and loads the initial room and user lists. A call
// made while another login is in flight returns false immediately.
func (d *Dispatcher) Login(ctx context.Context, username, password, baseURL string) bool {
	if !d.loggingIn.CompareAndSwap(false, true) {
		log.Debug().Str("username", username).Msg("Login already in progress")
		return false
	}
	defer func() {
		d.store.SetLoggingIn(false)
		d.loggingIn.Store(false)
	}()

	d.store.Update(func(st *state.AppState) {
		st.SetLoggingIn(true)
		st.SetConnectionStatus(state.StatusConnecting)
		st.SetError("")
	})

	d.bridge.Start()

	user, err := d.svc.Login(ctx, username, password, baseURL)
	if err != nil {
		d.bridge.Stop()
		status := state.StatusDisconnected
		if chat.IsAuth(err) {
			status = state.StatusError
		}
		d.store.Update(func(st *state.AppState) {
			st.SetError(err.Error())
			st.SetConnectionStatus(status)
		})
		log.Warn().Err(err).Str("username", username).Msg("Login failed")
		return false
	}

	d.store.SetCurrentUser(user)
	d.RefreshRooms(ctx)
	d.RefreshUsers(ctx)
	d.store.SetConnectionStatus(state.StatusConnected)
	d.notifier.Show("Successfully connected!", d.timing.NotificationTTL)

	log.Info().Str("user", user.ID).Msg("Logged in")
	return true
}

// Logout ends the session and returns to the login view.
func (d *Dispatcher) Logout(ctx context.Context) {
	d.nextSession()
	err := d.svc.Logout(ctx)

	d.bridge.Stop()
	d.notifier.CancelAll()

	d.store.Update(func(st *state.AppState) {
		st.SetCurrentUser(nil)
		st.SetCurrentRoom(nil)
		st.SetRooms(nil)
		st.SetUsers(nil)
		st.SetMessages(nil)
		st.ResetSelections()
		st.SetFocusedPane(state.PaneRooms)
		st.SetConnectionStatus(state.StatusDisconnected)
		st.SetView(state.ViewLogin)
		if err != nil {
			st.SetError(fmt.Sprintf("Logout failed: %v", err))
		} else {
			st.SetError("")
		}
	})

	if err != nil {
		log.Warn().Err(err).Msg("Logout failed")
		return
	}
	d.notifier.Show("Logged out successfully", d.timing.NotificationTTL)
	log.Info().Msg("Logged out")
}

// RefreshRooms replaces the room list. The result is dropped if the
// session ended while it was loading.
func (d *Dispatcher) RefreshRooms(ctx context.Context) {
	ctx, session, done := d.scope(ctx)
	defer done()

	rooms, err := d.svc.Rooms(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}

	applied := false
	d.store.Update(func(st *state.AppState) {
		if !d.live(st, session) {
			return
		}
		applied = true
		if err != nil {
			st.SetError(fmt.Sprintf("Failed to load rooms: %v", err))
			return
		}
		st.SetRooms(rooms)
	})

	switch {
	case !applied:
		log.Debug().Msg("Dropped stale room list")
	case err != nil:
		log.Warn().Err(err).Msg("Failed to load rooms")
	}
}

// RefreshUsers replaces the user list with the members of the current room,
// or with every known user when no room is active. The result is dropped if
// the room or the session changed while it was loading.
func (d *Dispatcher) RefreshUsers(ctx context.Context) {
	ctx, session, done := d.scope(ctx)
	defer done()

	roomID := d.store.Snapshot().CurrentRoomID()
	users, err := d.svc.Users(ctx, roomID)
	if err != nil && ctx.Err() != nil {
		return
	}

	applied := false
	d.store.Update(func(st *state.AppState) {
		if !d.live(st, session) || st.CurrentRoomID() != roomID {
			return
		}
		applied = true
		if err != nil {
			st.SetError(fmt.Sprintf("Failed to load users: %v", err))
			return
		}
		st.SetUsers(users)
	})

	switch {
	case !applied:
		log.Debug().Str("room", roomID).Msg("Dropped stale user list")
	case err != nil:
		log.Warn().Err(err).Str("room", roomID).Msg("Failed to load users")
	}
}

// SendMessage posts content to the current room. The message appears in the
// timeline when the backend echoes it.
func (d *Dispatcher) SendMessage(ctx context.Context, content string) error {
	roomID := d.store.Snapshot().CurrentRoomID()
	if roomID == "" {
		d.store.SetError("No room selected")
		return chat.ErrNoRoom
	}

	if err := d.svc.SendMessage(ctx, roomID, content); err != nil {
		d.store.SetError(fmt.Sprintf("Failed to send message: %v", err))
		log.Warn().Err(err).Str("room", roomID).Msg("Failed to send message")
		return err
	}
	return nil
}

// SendKnock knocks on userID.
func (d *Dispatcher) SendKnock(ctx context.Context, userID, text string) error {
	if err := d.svc.SendKnock(ctx, userID, text); err != nil {
		d.store.SetError(fmt.Sprintf("Failed to send knock: %v", err))
		log.Warn().Err(err).Str("user", userID).Msg("Failed to send knock")
		return err
	}
	d.notifier.Show("Knock sent to "+userID, d.timing.ShortNotificationTTL)
	return nil
}

// JoinRoom joins idOrAlias and reloads the room list.
func (d *Dispatcher) JoinRoom(ctx context.Context, idOrAlias string) error {
	if err := d.svc.JoinRoom(ctx, idOrAlias); err != nil {
		d.store.SetError(fmt.Sprintf("Failed to join room: %v", err))
		log.Warn().Err(err).Str("room", idOrAlias).Msg("Failed to join room")
		return err
	}
	d.RefreshRooms(ctx)
	d.notifier.Show("Joined room: "+idOrAlias, d.timing.ShortNotificationTTL)
	return nil
}
