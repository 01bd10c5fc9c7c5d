// Package office implements chat.Service against the nok office backend:
// REST for enumeration and a websocket for everything live.
package office

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/constants"
)

// Client is an office backend chat.Service.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	bus     *chat.Bus

	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.RWMutex
	base    string
	user    *chat.User
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	writeMu sync.Mutex
}

// NewClient creates a client for the REST API at baseURL.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = constants.DefaultOfficeURL
	}
	if requestTimeout <= 0 {
		requestTimeout = constants.RequestTimeout
	}
	return &Client{
		baseURL:    baseURL,
		http:       &http.Client{Timeout: requestTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: constants.WebsocketHandshakeTimeout},
		bus:        chat.NewBus(),
		backoffMin: constants.SyncBackoffMin,
		backoffMax: constants.SyncBackoffMax,
		base:       baseURL,
	}
}

// Subscribe registers handler for events of category.
func (c *Client) Subscribe(category chat.Category, handler chat.Handler) chat.Subscription {
	return c.bus.Subscribe(category, handler)
}

// Unsubscribe removes a subscription made by Subscribe.
func (c *Client) Unsubscribe(sub chat.Subscription) {
	c.bus.Unsubscribe(sub)
}

// Login finds or creates the user named username and opens the websocket.
// The backend has no passwords; password is ignored.
func (c *Client) Login(ctx context.Context, username, password, baseURL string) (*chat.User, error) {
	if baseURL == "" {
		baseURL = c.baseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, &chat.AuthError{Err: fmt.Errorf("invalid server %q: %w", baseURL, err)}
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &chat.AuthError{Err: errors.New("username required")}
	}

	c.stop()
	c.mu.Lock()
	c.base = baseURL
	c.mu.Unlock()

	u, err := c.findOrCreateUser(ctx, username)
	if err != nil {
		return nil, &chat.AuthError{Err: err}
	}
	user := &chat.User{ID: u.ID, Name: u.Name, Status: chat.UserStatusOnline}

	conn, err := c.dial(ctx, user.ID)
	if err != nil {
		return nil, &chat.AuthError{Err: err}
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	c.start(conn)
	log.Info().Str("user", user.ID).Str("name", user.Name).Str("server", baseURL).Msg("Office login")
	return user, nil
}

func (c *Client) findOrCreateUser(ctx context.Context, name string) (*apiUser, error) {
	var users []apiUser
	if err := c.do(ctx, http.MethodGet, "/api/users/", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		if users[i].Name == name {
			return &users[i], nil
		}
	}

	var created apiUser
	if err := c.do(ctx, http.MethodPost, "/api/users/", createUserRequest{Name: name}, &created); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

// Logout closes the websocket. The backend marks the user offline when the
// connection drops.
func (c *Client) Logout(ctx context.Context) error {
	c.stop()
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
	return nil
}

// Close logs out and releases subscriptions.
func (c *Client) Close() {
	c.stop()
	c.bus.Close()
}

func (c *Client) currentUser() *chat.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Rooms lists every room with its member IDs.
func (c *Client) Rooms(ctx context.Context) ([]chat.Room, error) {
	if c.currentUser() == nil {
		return nil, chat.ErrNotConnected
	}

	var apiRooms []apiRoom
	if err := c.do(ctx, http.MethodGet, "/api/rooms/", nil, &apiRooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]chat.Room, 0, len(apiRooms))
	for _, r := range apiRooms {
		members, err := c.members(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		rooms = append(rooms, chat.Room{ID: r.ID, Name: r.Name, Topic: r.Description, Members: ids})
	}
	return rooms, nil
}

// Users lists the members of roomID, or every user when roomID is "".
func (c *Client) Users(ctx context.Context, roomID string) ([]chat.User, error) {
	if c.currentUser() == nil {
		return nil, chat.ErrNotConnected
	}

	var list []apiUser
	if roomID == "" {
		if err := c.do(ctx, http.MethodGet, "/api/users/", nil, &list); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
	} else {
		var err error
		if list, err = c.members(ctx, roomID); err != nil {
			return nil, err
		}
	}

	users := make([]chat.User, len(list))
	for i, u := range list {
		users[i] = chat.User{ID: u.ID, Name: u.Name, Status: chat.ParseUserStatus(u.Status)}
	}
	return users, nil
}

func (c *Client) members(ctx context.Context, roomID string) ([]apiUser, error) {
	var members []apiUser
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/members", nil, &members); err != nil {
		return nil, fmt.Errorf("room %s members: %w", roomID, err)
	}
	return members, nil
}

// SendMessage posts text to roomID over the websocket.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) error {
	if err := c.write(outbound{Type: "message", RoomID: roomID, Content: text}); err != nil {
		return &chat.SendError{Err: err}
	}
	return nil
}

// SendKnock knocks on userID over the websocket.
func (c *Client) SendKnock(ctx context.Context, userID, text string) error {
	if text == "" {
		text = chat.DefaultKnockText
	}
	if err := c.write(outbound{Type: "knock", TargetUserID: userID, Content: text}); err != nil {
		return &chat.SendError{Err: err}
	}
	return nil
}

// JoinRoom adds the user to roomID and subscribes the websocket to it.
// Joining a room the user already belongs to succeeds.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	user := c.currentUser()
	if user == nil {
		return &chat.JoinError{Room: roomID, Err: chat.ErrNotConnected}
	}

	path := "/api/rooms/" + url.PathEscape(roomID) + "/join?user_id=" + url.QueryEscape(user.ID)
	err := c.do(ctx, http.MethodPost, path, nil, nil)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest) {
		return &chat.JoinError{Room: roomID, Err: err}
	}

	if err := c.write(outbound{Type: "join_room", RoomID: roomID}); err != nil {
		return &chat.JoinError{Room: roomID, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	c.mu.RLock()
	base := c.base
	c.mu.RUnlock()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
