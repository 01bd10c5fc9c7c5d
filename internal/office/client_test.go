package office

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xonecas/nok/internal/chat"
)

type fakeOffice struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	conns chan *websocket.Conn
	inbox chan outbound

	mu      sync.Mutex
	users   []apiUser
	members map[string][]string
}

func newFakeOffice(t *testing.T) *fakeOffice {
	t.Helper()
	f := &fakeOffice{
		conns:   make(chan *websocket.Conn, 4),
		inbox:   make(chan outbound, 32),
		users:   []apiUser{{ID: "u-bob", Name: "bob", Status: "away"}},
		members: map[string][]string{"r1": {"u-bob"}, "r2": {}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.users)
	})
	mux.HandleFunc("POST /api/users/", func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		u := apiUser{ID: "u-" + req.Name, Name: req.Name, Status: "offline"}
		f.mu.Lock()
		f.users = append(f.users, u)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, u)
	})
	mux.HandleFunc("GET /api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []apiRoom{
			{ID: "r1", Name: "General", Description: "all hands"},
			{ID: "r2", Name: "Random"},
		})
	})
	mux.HandleFunc("GET /api/rooms/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ids, ok := f.members[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, APIError{Detail: "Room not found"})
			return
		}
		var out []apiUser
		for _, id := range ids {
			for _, u := range f.users {
				if u.ID == id {
					out = append(out, u)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("POST /api/rooms/{id}/join", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, user := r.PathValue("id"), r.URL.Query().Get("user_id")
		ids, ok := f.members[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, APIError{Detail: "Room not found"})
			return
		}
		for _, m := range ids {
			if m == user {
				writeJSON(w, http.StatusBadRequest, APIError{Detail: "User already in room"})
				return
			}
		}
		f.members[id] = append(ids, user)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully joined room"})
	})
	mux.HandleFunc("/ws/{user}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
		go func() {
			for {
				var msg outbound
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				f.inbox <- msg
			}
		}()
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupOfficeTest(t *testing.T) (*Client, *fakeOffice, *websocket.Conn) {
	t.Helper()
	f := newFakeOffice(t)
	c := NewClient(f.srv.URL, time.Second)
	c.backoffMin = 10 * time.Millisecond
	c.backoffMax = 20 * time.Millisecond
	t.Cleanup(c.Close)

	user, err := c.Login(context.Background(), "alice", "", "")
	require.NoError(t, err)
	require.Equal(t, "u-alice", user.ID)

	return c, f, nextConn(t, f)
}

func nextConn(t *testing.T, f *fakeOffice) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection")
		return nil
	}
}

func nextOutbound(t *testing.T, f *fakeOffice) outbound {
	t.Helper()
	select {
	case msg := <-f.inbox:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
		return outbound{}
	}
}

func receive(t *testing.T, ch <-chan chat.Event) chat.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return chat.Event{}
	}
}

func collect(c *Client, cat chat.Category) <-chan chat.Event {
	ch := make(chan chat.Event, 16)
	c.Subscribe(cat, func(ev chat.Event) { ch <- ev })
	return ch
}

func TestLoginFindsOrCreatesUser(t *testing.T) {
	f := newFakeOffice(t)
	c := NewClient(f.srv.URL, time.Second)
	t.Cleanup(c.Close)

	user, err := c.Login(context.Background(), "bob", "ignored", "")
	require.NoError(t, err)
	assert.Equal(t, "u-bob", user.ID)

	f.mu.Lock()
	assert.Len(t, f.users, 1, "existing user must be reused")
	f.mu.Unlock()

	nextConn(t, f)
	assert.Equal(t, outbound{Type: "join_room", RoomID: "r1"}, nextOutbound(t, f))
}

func TestLoginRequiresUsername(t *testing.T) {
	f := newFakeOffice(t)
	c := NewClient(f.srv.URL, time.Second)
	t.Cleanup(c.Close)

	_, err := c.Login(context.Background(), "  ", "", "")
	assert.True(t, chat.IsAuth(err))
}

func TestRoomsAndUsers(t *testing.T) {
	c, _, _ := setupOfficeTest(t)

	rooms, err := c.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, chat.Room{ID: "r1", Name: "General", Topic: "all hands", Members: []string{"u-bob"}}, rooms[0])

	users, err := c.Users(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []chat.User{{ID: "u-bob", Name: "bob", Status: chat.UserStatusAway}}, users)

	all, err := c.Users(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSendWritesOutbound(t *testing.T) {
	c, f, _ := setupOfficeTest(t)

	require.NoError(t, c.SendMessage(context.Background(), "r1", "hello"))
	assert.Equal(t, outbound{Type: "message", RoomID: "r1", Content: "hello"}, nextOutbound(t, f))

	require.NoError(t, c.SendKnock(context.Background(), "u-bob", ""))
	assert.Equal(t, outbound{Type: "knock", TargetUserID: "u-bob", Content: chat.DefaultKnockText}, nextOutbound(t, f))
}

func TestJoinRoom(t *testing.T) {
	c, f, _ := setupOfficeTest(t)

	require.NoError(t, c.JoinRoom(context.Background(), "r2"))
	assert.Equal(t, outbound{Type: "join_room", RoomID: "r2"}, nextOutbound(t, f))

	require.NoError(t, c.JoinRoom(context.Background(), "r2"), "joining twice succeeds")
	nextOutbound(t, f)

	err := c.JoinRoom(context.Background(), "nope")
	var je *chat.JoinError
	require.True(t, errors.As(err, &je))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestInboundDispatch(t *testing.T) {
	c, _, conn := setupOfficeTest(t)
	timeline := collect(c, chat.CategoryTimeline)
	membership := collect(c, chat.CategoryMembership)
	presence := collect(c, chat.CategoryPresence)

	send := func(v any) {
		require.NoError(t, conn.WriteJSON(v))
	}
	send(map[string]any{
		"type": "message", "message_id": "m1", "sender_id": "u-bob", "sender_name": "bob",
		"room_id": "r1", "content": "hi", "timestamp": "2024-05-01T10:00:00.123456",
	})
	send(map[string]any{"type": "knock", "sender_id": "u-bob", "sender_name": "bob", "content": "bob knocked"})
	send(map[string]any{"type": "room_leave", "user_id": "u-bob", "room_id": "r1"})
	send(map[string]any{"type": "user_status", "user_id": "u-bob", "user_name": "bob", "status": "busy"})
	send(map[string]any{"type": "mystery"})

	msg := receive(t, timeline).Payload.(chat.TimelinePayload)
	assert.Equal(t, "m1", msg.EventID)
	assert.Equal(t, "hi", msg.Content["body"])
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC).UnixMilli(), msg.OriginTS)

	knock := receive(t, timeline).Payload.(chat.TimelinePayload)
	assert.Equal(t, "knock", knock.EventType)
	assert.Equal(t, "bob knocked", knock.Content["message"])
	assert.NotEmpty(t, knock.EventID)

	assert.Equal(t, chat.MembershipPayload{RoomID: "r1", UserID: "u-bob", Membership: "leave"},
		receive(t, membership).Payload)
	assert.Equal(t, chat.PresencePayload{UserID: "u-bob", Presence: "busy", DisplayName: "bob"},
		receive(t, presence).Payload)
}

func TestDropPublishesErrorAndRedials(t *testing.T) {
	c, f, conn := setupOfficeTest(t)
	errs := collect(c, chat.CategoryTransportError)
	recovered := collect(c, chat.CategoryReconnected)

	conn.Close()

	ev := receive(t, errs)
	var te *chat.TransportError
	assert.True(t, errors.As(ev.Payload.(chat.TransportErrorPayload).Err, &te))

	nextConn(t, f)
	assert.Equal(t, chat.ReconnectedPayload{}, receive(t, recovered).Payload)
	require.Eventually(t, func() bool {
		return c.SendMessage(context.Background(), "r1", "back") == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogoutStopsRedial(t *testing.T) {
	c, f, _ := setupOfficeTest(t)

	require.NoError(t, c.Logout(context.Background()))
	err := c.SendMessage(context.Background(), "r1", "gone")
	assert.ErrorIs(t, err, chat.ErrNotConnected)

	select {
	case <-f.conns:
		t.Fatal("client redialed after logout")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8001", "ws://localhost:8001/ws/u1"},
		{"https://office.example/", "wss://office.example/ws/u1"},
		{"http://host/prefix", "ws://host/prefix/ws/u1"},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.base, "u1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
