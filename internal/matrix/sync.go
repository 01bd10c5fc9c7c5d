package matrix

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
)

// initialFilter limits the first sync to a short timeline per room.
const initialFilter = `{"room":{"timeline":{"limit":10}}}`

func (c *Client) startSync() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.stopSync = cancel
	c.syncDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.syncLoop(ctx)
	}()
}

// stop cancels the sync loop and waits for it to exit.
func (c *Client) stop() {
	c.mu.Lock()
	cancel, done := c.stopSync, c.syncDone
	c.stopSync, c.syncDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) syncLoop(ctx context.Context) {
	since := ""
	backoff := c.backoffMin
	failing := false

	for {
		resp, err := c.syncOnce(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("Sync failed")
			c.bus.Publish(chat.CategoryTransportError, chat.TransportErrorPayload{Err: &chat.TransportError{Err: err}})
			failing = true

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.backoffMax)
			continue
		}

		if failing {
			failing = false
			log.Info().Msg("Sync recovered")
			c.bus.Publish(chat.CategoryReconnected, chat.ReconnectedPayload{})
		}
		backoff = c.backoffMin
		c.apply(resp, since == "")
		since = resp.NextBatch
	}
}

func (c *Client) syncOnce(ctx context.Context, since string) (*syncResponse, error) {
	q := url.Values{}
	if since == "" {
		q.Set("filter", initialFilter)
		q.Set("timeout", "0")
	} else {
		q.Set("since", since)
		q.Set("timeout", strconv.FormatInt(c.cfg.SyncTimeout.Milliseconds(), 10))
	}

	var resp syncResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/sync", query: q, sync: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// apply folds a sync response into the cache and publishes what changed.
// The initial sync only hydrates the cache; its history is not published.
func (c *Client) apply(resp *syncResponse, initial bool) {
	for roomID, jr := range resp.Rooms.Join {
		c.cache.ensureRoom(roomID)
		for _, ev := range jr.State.Events {
			if ev.isState() {
				c.cache.applyState(roomID, ev)
			}
		}
		for _, ev := range jr.Timeline.Events {
			if ev.isState() {
				if c.cache.applyState(roomID, ev) && !initial {
					c.bus.Publish(chat.CategoryMembership, chat.MembershipPayload{
						RoomID:     roomID,
						UserID:     *ev.StateKey,
						Membership: ev.str("membership"),
					})
				}
				continue
			}
			if initial {
				continue
			}
			c.bus.Publish(chat.CategoryTimeline, chat.TimelinePayload{
				EventID:    ev.EventID,
				EventType:  ev.Type,
				RoomID:     roomID,
				Sender:     ev.Sender,
				SenderName: c.cache.displayName(roomID, ev.Sender),
				Content:    ev.Content,
				OriginTS:   ev.OriginServerTS,
			})
		}
	}

	self := c.UserID()
	for roomID := range resp.Rooms.Leave {
		c.cache.removeRoom(roomID)
		if !initial {
			c.bus.Publish(chat.CategoryMembership, chat.MembershipPayload{
				RoomID:     roomID,
				UserID:     self,
				Membership: "leave",
			})
		}
	}

	for _, ev := range resp.Presence.Events {
		presence := ev.str("presence")
		c.cache.setPresence(ev.Sender, presence, ev.str("displayname"))
		if !initial {
			c.bus.Publish(chat.CategoryPresence, chat.PresencePayload{
				UserID:      ev.Sender,
				Presence:    presence,
				DisplayName: ev.str("displayname"),
			})
		}
	}
}
