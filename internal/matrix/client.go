// Package matrix implements chat.Service against a Matrix homeserver using
// the client-server HTTP API and a long-poll /sync loop.
package matrix

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/constants"
)

// Config holds homeserver connection settings.
type Config struct {
	Homeserver     string
	ServerName     string
	DeviceID       string
	DeviceName     string
	SyncTimeout    time.Duration
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

// DeviceStore remembers the device ID issued for a user so later logins
// reuse it.
type DeviceStore interface {
	DeviceID(homeserver, userID string) (string, error)
	SaveDevice(homeserver, userID, deviceID string) error
}

// Client is a Matrix chat.Service.
type Client struct {
	cfg      Config
	devices  DeviceStore
	bus      *chat.Bus
	cache    *cache
	http     *http.Client
	syncHTTP *http.Client
	limiter  *rate.Limiter

	backoffMin time.Duration
	backoffMax time.Duration

	mu         sync.RWMutex
	homeserver string
	token      string
	userID     string
	stopSync   context.CancelFunc
	syncDone   chan struct{}
}

// NewClient creates a client. devices may be nil.
func NewClient(cfg Config, devices DeviceStore) *Client {
	if cfg.Homeserver == "" {
		cfg.Homeserver = constants.DefaultHomeserver
	}
	if cfg.ServerName == "" {
		cfg.ServerName = constants.DefaultServerName
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = constants.DefaultDeviceName
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = constants.SyncTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.RequestTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = constants.RequestRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = constants.RequestRateBurst
	}

	return &Client{
		cfg:        cfg,
		devices:    devices,
		bus:        chat.NewBus(),
		cache:      newCache(),
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		syncHTTP:   &http.Client{Timeout: cfg.SyncTimeout + constants.SyncTimeoutMargin},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		backoffMin: constants.SyncBackoffMin,
		backoffMax: constants.SyncBackoffMax,
		homeserver: cfg.Homeserver,
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

// UserID returns the logged-in user's ID, or "".
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Login authenticates with a password and starts syncing. A bare username
// is qualified with the configured server name.
func (c *Client) Login(ctx context.Context, username, password, baseURL string) (*chat.User, error) {
	if baseURL == "" {
		baseURL = c.cfg.Homeserver
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, &chat.AuthError{Err: fmt.Errorf("invalid homeserver %q: %w", baseURL, err)}
	}

	c.stop()

	userID := qualify(username, c.cfg.ServerName)
	deviceID := c.cfg.DeviceID
	if deviceID == "" && c.devices != nil {
		id, err := c.devices.DeviceID(baseURL, userID)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("Failed to load device id")
		}
		deviceID = id
	}

	c.mu.Lock()
	c.homeserver = baseURL
	c.token = ""
	c.mu.Unlock()

	var resp loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/login",
		body: loginRequest{
			Type:                     "m.login.password",
			Identifier:               identifier{Type: "m.id.user", User: userID},
			Password:                 password,
			DeviceID:                 deviceID,
			InitialDeviceDisplayName: c.cfg.DeviceName,
		},
	}, &resp)
	if err != nil {
		return nil, &chat.AuthError{Err: err}
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.userID = resp.UserID
	c.mu.Unlock()
	c.cache.reset(resp.UserID)

	if c.devices != nil && resp.DeviceID != "" {
		if err := c.devices.SaveDevice(baseURL, resp.UserID, resp.DeviceID); err != nil {
			log.Warn().Err(err).Str("user", resp.UserID).Msg("Failed to save device id")
		}
	}

	user := &chat.User{
		ID:     resp.UserID,
		Name:   c.ownDisplayName(ctx, resp.UserID),
		Status: chat.UserStatusOnline,
	}

	c.startSync()
	log.Info().Str("user", resp.UserID).Str("device", resp.DeviceID).Str("homeserver", baseURL).Msg("Matrix login")
	return user, nil
}

func (c *Client) ownDisplayName(ctx context.Context, userID string) string {
	var resp displayNameResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/profile/" + url.PathEscape(userID) + "/displayname",
	}, &resp)
	if err != nil || resp.DisplayName == "" {
		return localpart(userID)
	}
	return resp.DisplayName
}

// Logout stops syncing and invalidates the access token.
func (c *Client) Logout(ctx context.Context) error {
	c.stop()

	c.mu.RLock()
	loggedIn := c.token != ""
	c.mu.RUnlock()
	if !loggedIn {
		return nil
	}

	err := c.do(ctx, request{method: http.MethodPost, path: "/logout", body: struct{}{}}, nil)

	c.mu.Lock()
	c.token = ""
	c.userID = ""
	c.mu.Unlock()
	c.cache.reset("")

	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Close stops syncing without logging out.
func (c *Client) Close() {
	c.stop()
	c.bus.Close()
}

func (c *Client) loggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Rooms lists joined rooms with their current state.
func (c *Client) Rooms(ctx context.Context) ([]chat.Room, error) {
	if !c.loggedIn() {
		return nil, chat.ErrNotConnected
	}

	var joined joinedRoomsResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/joined_rooms"}, &joined); err != nil {
		return nil, fmt.Errorf("list joined rooms: %w", err)
	}
	c.cache.retain(joined.JoinedRooms)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range joined.JoinedRooms {
		g.Go(func() error {
			var events []event
			if err := c.do(gctx, request{method: http.MethodGet, path: roomPath(id, "state")}, &events); err != nil {
				return fmt.Errorf("room %s state: %w", id, err)
			}
			for _, ev := range events {
				if ev.isState() {
					c.cache.applyState(id, ev)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return c.cache.chatRooms(), nil
}

// Users lists the joined members of roomID, or every user seen in any
// joined room when roomID is "".
func (c *Client) Users(ctx context.Context, roomID string) ([]chat.User, error) {
	if !c.loggedIn() {
		return nil, chat.ErrNotConnected
	}
	if roomID == "" {
		return c.cache.users(""), nil
	}

	var resp joinedMembersResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: roomPath(roomID, "joined_members")}, &resp); err != nil {
		return nil, fmt.Errorf("room %s members: %w", roomID, err)
	}
	c.cache.setMembers(roomID, resp.Joined)
	return c.cache.users(roomID), nil
}

// SendMessage posts a text message to roomID.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) error {
	if !c.loggedIn() {
		return &chat.SendError{Err: chat.ErrNotConnected}
	}
	content := map[string]any{"msgtype": "m.text", "body": text}
	if err := c.send(ctx, roomID, "m.room.message", content); err != nil {
		return &chat.SendError{Err: err}
	}
	return nil
}

// SendKnock sends a knock event to the direct room shared with userID,
// creating the room if none exists.
func (c *Client) SendKnock(ctx context.Context, userID, text string) error {
	if !c.loggedIn() {
		return &chat.SendError{Err: chat.ErrNotConnected}
	}
	if text == "" {
		text = chat.DefaultKnockText
	}

	roomID, err := c.directRoom(ctx, userID)
	if err != nil {
		return &chat.SendError{Err: err}
	}

	content := map[string]any{
		"message":   text,
		"body":      text,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := c.send(ctx, roomID, chat.KnockEventType, content); err != nil {
		return &chat.SendError{Err: err}
	}
	return nil
}

func (c *Client) directRoom(ctx context.Context, userID string) (string, error) {
	if id, ok := c.cache.dm(userID); ok {
		return id, nil
	}

	var resp roomIDResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/createRoom",
		body: createRoomRequest{
			Invite:   []string{userID},
			IsDirect: true,
			Preset:   "trusted_private_chat",
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("create direct room: %w", err)
	}
	c.cache.setDM(userID, resp.RoomID)
	log.Debug().Str("user", userID).Str("room", resp.RoomID).Msg("Created direct room")
	return resp.RoomID, nil
}

func (c *Client) send(ctx context.Context, roomID, eventType string, content map[string]any) error {
	var resp sendResponse
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   roomPath(roomID, "send", eventType, uuid.NewString()),
		body:   content,
	}, &resp)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", eventType, roomID, err)
	}
	log.Debug().Str("room", roomID).Str("event", resp.EventID).Str("type", eventType).Msg("Sent event")
	return nil
}

// JoinRoom joins a room by ID or alias.
func (c *Client) JoinRoom(ctx context.Context, idOrAlias string) error {
	if !c.loggedIn() {
		return &chat.JoinError{Room: idOrAlias, Err: chat.ErrNotConnected}
	}

	var resp roomIDResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/join/" + url.PathEscape(idOrAlias),
		body:   struct{}{},
	}, &resp)
	if err != nil {
		return &chat.JoinError{Room: idOrAlias, Err: err}
	}
	if resp.RoomID != "" {
		c.cache.ensureRoom(resp.RoomID)
	}
	return nil
}
