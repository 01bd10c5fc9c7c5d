package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Tasks runs network operations off the keyboard path. Task failures are
// reported through the store by the task itself, never through the group.
type Tasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewTasks creates a runner whose tasks see a context derived from parent.
func NewTasks(parent context.Context) *Tasks {
	ctx, cancel := context.WithCancel(parent)
	return &Tasks{ctx: ctx, cancel: cancel}
}

// Go starts fn in the background. It is a no-op after Close.
func (t *Tasks) Go(name string, fn func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		log.Debug().Str("task", name).Msg("Task rejected after close")
		return
	}

	t.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("task", name).Interface("panic", r).Msg("Task panicked")
				err = fmt.Errorf("task %s panicked: %v", name, r)
			}
		}()
		fn(t.ctx)
		return nil
	})
}

// Context returns the context handed to tasks.
func (t *Tasks) Context() context.Context {
	return t.ctx
}

// Close cancels running tasks and waits up to timeout for them to return.
func (t *Tasks) Close(timeout time.Duration) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()

	done := make(chan error, 1)
	go func() { done <- t.group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			log.Warn().Err(err).Msg("Background task failed")
		}
	case <-time.After(timeout):
		log.Warn().Msg("Timed out waiting for background tasks")
	}
}
