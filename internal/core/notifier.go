package core

import (
	"sync"
	"time"

	"github.com/xonecas/nok/internal/state"
)

// Notifier shows banners that clear themselves. Each banner is cleared by
// its own timer only, so a newer banner survives an older one's expiry.
type Notifier struct {
	store *state.Store

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	closed bool
}

// NewNotifier creates a notifier writing to s.
func NewNotifier(s *state.Store) *Notifier {
	return &Notifier{
		store:  s,
		timers: make(map[uint64]*time.Timer),
	}
}

// Show sets text as the active banner for ttl and returns its generation.
func (n *Notifier) Show(text string, ttl time.Duration) uint64 {
	gen := n.store.SetNotification(text)
	n.Expire(gen, ttl)
	return gen
}

// Expire schedules the banner with generation gen to clear after ttl. It is
// used when the banner was set inside a compound store update.
func (n *Notifier) Expire(gen uint64, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	n.timers[gen] = time.AfterFunc(ttl, func() {
		n.store.ClearNotification(gen)
		n.mu.Lock()
		delete(n.timers, gen)
		n.mu.Unlock()
	})
}

// Pending returns the number of scheduled expiries.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}

// CancelAll stops every scheduled expiry.
func (n *Notifier) CancelAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for gen, t := range n.timers {
		t.Stop()
		delete(n.timers, gen)
	}
}

// Close cancels pending expiries and rejects new ones.
func (n *Notifier) Close() {
	n.CancelAll()
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}
