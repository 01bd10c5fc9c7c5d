package office

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
)

// wsURL maps http(s)://host to ws(s)://host/ws/{userID}.
func wsURL(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(userID)
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context, userID string) (*websocket.Conn, error) {
	c.mu.RLock()
	base := c.base
	c.mu.RUnlock()

	target, err := wsURL(base, userID)
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}

// start runs the read loop on conn until stop is called, redialing after
// the connection drops.
func (c *Client) start(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx, conn)
	}()
}

func (c *Client) stop() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	if cancel != nil {
		cancel()
	}
	c.cancel, c.done, c.conn = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
	<-done
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	backoff := c.backoffMin
	c.rejoin(ctx)

	for {
		err := c.readLoop(conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("Office websocket dropped")
		c.bus.Publish(chat.CategoryTransportError, chat.TransportErrorPayload{Err: &chat.TransportError{Err: err}})

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.backoffMax)

			user := c.currentUser()
			if user == nil {
				return
			}
			next, err := c.dial(ctx, user.ID)
			if err != nil {
				log.Warn().Err(err).Msg("Office websocket redial failed")
				continue
			}

			c.mu.Lock()
			if ctx.Err() != nil {
				c.mu.Unlock()
				next.Close()
				return
			}
			c.conn = next
			c.mu.Unlock()

			conn = next
			backoff = c.backoffMin
			c.rejoin(ctx)
			log.Info().Msg("Office websocket reconnected")
			c.bus.Publish(chat.CategoryReconnected, chat.ReconnectedPayload{})
			break
		}
	}
}

// rejoin subscribes the connection to every room the user belongs to, so
// room messages are delivered after a (re)connect.
func (c *Client) rejoin(ctx context.Context) {
	user := c.currentUser()
	if user == nil {
		return
	}
	rooms, err := c.Rooms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list rooms for websocket rejoin")
		return
	}
	for _, r := range rooms {
		if !r.HasMember(user.ID) {
			continue
		}
		if err := c.write(outbound{Type: "join_room", RoomID: r.ID}); err != nil {
			log.Warn().Err(err).Str("room", r.ID).Msg("Failed to rejoin room")
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("Dropped undecodable office message")
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch publishes one server message on the matching category.
func (c *Client) dispatch(msg inbound) {
	switch msg.Type {
	case "message", "knock":
		c.bus.Publish(chat.CategoryTimeline, timelinePayload(msg))
	case "room_join", "room_leave":
		membership := "join"
		if msg.Type == "room_leave" {
			membership = "leave"
		}
		c.bus.Publish(chat.CategoryMembership, chat.MembershipPayload{
			RoomID:     msg.RoomID,
			UserID:     msg.UserID,
			Membership: membership,
		})
	case "user_status":
		c.bus.Publish(chat.CategoryPresence, chat.PresencePayload{
			UserID:      msg.UserID,
			Presence:    msg.Status,
			DisplayName: msg.UserName,
		})
	default:
		log.Debug().Str("type", msg.Type).Msg("Ignored office message")
	}
}

func timelinePayload(msg inbound) chat.TimelinePayload {
	p := chat.TimelinePayload{
		EventID:    msg.MessageID,
		EventType:  "m.room.message",
		RoomID:     msg.RoomID,
		Sender:     msg.SenderID,
		SenderName: msg.SenderName,
		Content:    map[string]any{"msgtype": "m.text", "body": msg.Content},
	}
	if ts, ok := parseTimestamp(msg.Timestamp); ok {
		p.OriginTS = ts.UnixMilli()
	}
	if msg.Type == "knock" {
		p.EventType = "knock"
		p.Content = map[string]any{"message": msg.Content}
	}
	if p.EventID == "" {
		p.EventID = uuid.NewString()
	}
	return p
}

func (c *Client) write(msg outbound) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return chat.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}
