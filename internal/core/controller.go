package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/constants"
	"github.com/xonecas/nok/internal/state"
)

// Options configures a Controller.
type Options struct {
	Timing  Timing
	Alerter Alerter
}

// Controller wires the store, bridge, dispatcher and input controller
// around one messaging service.
type Controller struct {
	store      *state.Store
	notifier   *Notifier
	tasks      *Tasks
	bridge     *Bridge
	dispatcher *Dispatcher
	input      *InputController

	closeOnce sync.Once
}

// NewController creates a controller for svc. Background work stops when
// ctx is cancelled or Close is called.
func NewController(ctx context.Context, svc chat.Service, opts Options) *Controller {
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}

	c := &Controller{
		store: state.NewStore(),
		tasks: NewTasks(ctx),
	}
	c.notifier = NewNotifier(c.store)
	c.bridge = NewBridge(svc, c.store, c.notifier, opts.Alerter, opts.Timing, c.rosterChanged)
	c.dispatcher = NewDispatcher(svc, c.store, c.notifier, c.bridge, opts.Timing)
	c.input = NewInputController(c.store, c.dispatcher, c.tasks)
	return c
}

// rosterChanged reloads the user list off the event goroutine.
func (c *Controller) rosterChanged() {
	c.tasks.Go("refresh-users", c.dispatcher.RefreshUsers)
}

// HandleKey applies one keystroke.
func (c *Controller) HandleKey(k Key) Action {
	return c.input.HandleKey(k)
}

// Login starts a login in the background. On success the main view opens.
func (c *Controller) Login(username, password, baseURL string) {
	c.tasks.Go("login", func(ctx context.Context) {
		if c.dispatcher.Login(ctx, username, password, baseURL) {
			c.store.SetView(state.ViewMain)
		}
	})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() state.AppState {
	return c.store.Snapshot()
}

// Changes signals after every state change.
func (c *Controller) Changes() <-chan struct{} {
	return c.store.Changes()
}

// Store exposes the state store for direct access (e.g., for testing).
func (c *Controller) Store() *state.Store {
	return c.store
}

// Dispatcher exposes the command dispatcher.
func (c *Controller) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Close stops timers, the event subscription and background tasks.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.tasks.Close(constants.StopTimeout)
		c.bridge.Stop()
		c.notifier.Close()
		log.Info().Msg("Controller closed")
	})
}
