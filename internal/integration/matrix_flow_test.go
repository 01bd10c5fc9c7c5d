package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xonecas/nok/internal/core"
	"github.com/xonecas/nok/internal/matrix"
	"github.com/xonecas/nok/internal/state"
	"github.com/xonecas/nok/internal/store"
)

// homeserver is a minimal Matrix homeserver: one room, password "secret",
// and a sync stream fed through live.
type homeserver struct {
	srv  *httptest.Server
	live chan map[string]any

	mu      sync.Mutex
	devices []string
	sent    []map[string]any
}

func newHomeserver(t *testing.T) *homeserver {
	t.Helper()
	h := &homeserver{live: make(chan map[string]any, 4)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier struct {
				User string `json:"user"`
			} `json:"identifier"`
			Password string `json:"password"`
			DeviceID string `json:"device_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		h.mu.Lock()
		h.devices = append(h.devices, req.DeviceID)
		h.mu.Unlock()

		if req.Password != "secret" {
			writeJSON(w, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN", "error": "Invalid password"})
			return
		}
		device := req.DeviceID
		if device == "" {
			device = "DEVICE1"
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id":      req.Identifier.User,
			"access_token": "tok",
			"device_id":    device,
		})
	})
	mux.HandleFunc("GET /_matrix/client/v3/profile/{user}/displayname", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"displayname": "Alice"})
	})
	mux.HandleFunc("GET /_matrix/client/v3/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") == "" {
			writeJSON(w, http.StatusOK, map[string]any{"next_batch": "s0"})
			return
		}
		select {
		case resp := <-h.live:
			writeJSON(w, http.StatusOK, resp)
		case <-r.Context().Done():
		case <-time.After(50 * time.Millisecond):
			writeJSON(w, http.StatusOK, map[string]any{"next_batch": r.URL.Query().Get("since")})
		}
	})
	mux.HandleFunc("GET /_matrix/client/v3/joined_rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"joined_rooms": []string{"!lobby:hs"}})
	})
	mux.HandleFunc("GET /_matrix/client/v3/rooms/{room}/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"type": "m.room.name", "state_key": "", "content": map[string]any{"name": "Lobby"}},
			{"type": "m.room.member", "state_key": "@alice:hs", "sender": "@alice:hs", "content": map[string]any{"membership": "join", "displayname": "Alice"}},
			{"type": "m.room.member", "state_key": "@bob:hs", "sender": "@bob:hs", "content": map[string]any{"membership": "join", "displayname": "Bob"}},
		})
	})
	mux.HandleFunc("GET /_matrix/client/v3/rooms/{room}/joined_members", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"joined": map[string]any{
			"@alice:hs": map[string]string{"display_name": "Alice"},
			"@bob:hs":   map[string]string{"display_name": "Bob"},
		}})
	})
	mux.HandleFunc("PUT /_matrix/client/v3/rooms/{room}/send/{type}/{txn}", func(w http.ResponseWriter, r *http.Request) {
		var content map[string]any
		_ = json.NewDecoder(r.Body).Decode(&content)
		content["_room"] = r.PathValue("room")
		content["_type"] = r.PathValue("type")
		h.mu.Lock()
		h.sent = append(h.sent, content)
		h.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$" + r.PathValue("txn")})
	})
	mux.HandleFunc("POST /_matrix/client/v3/join/{room}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"room_id": r.PathValue("room")})
	})
	mux.HandleFunc("POST /_matrix/client/v3/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *homeserver) loginDevices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.devices...)
}

func (h *homeserver) sentEvents() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.sent...)
}

func setupMatrixFlow(t *testing.T) (*homeserver, *store.Store, *matrix.Client, *core.Controller) {
	t.Helper()
	stubAlerts(t)
	h := newHomeserver(t)

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	client := matrix.NewClient(matrix.Config{
		Homeserver:     h.srv.URL,
		ServerName:     "hs",
		SyncTimeout:    time.Second,
		RequestTimeout: 2 * time.Second,
	}, s)
	t.Cleanup(client.Close)

	ctrl, _ := startController(t, client)
	return h, s, client, ctrl
}

func TestMatrixLoginPersistsDevice(t *testing.T) {
	h, s, _, ctrl := setupMatrixFlow(t)

	ctrl.Login("alice", "secret", h.srv.URL)
	st := waitForState(t, ctrl, "login never completed", loggedIn)

	assert.Equal(t, state.ViewMain, st.View)
	assert.Equal(t, "@alice:hs", st.CurrentUser.ID)
	assert.Equal(t, "Alice", st.CurrentUser.Name)
	require.Len(t, st.Rooms, 1)
	assert.Equal(t, "Lobby", st.Rooms[0].Name)

	dev, err := s.DeviceID(h.srv.URL, "@alice:hs")
	require.NoError(t, err)
	assert.Equal(t, "DEVICE1", dev)

	ctrl.Dispatcher().Logout(t.Context())
	waitForState(t, ctrl, "logout never reached the login view", func(st state.AppState) bool {
		return st.View == state.ViewLogin && st.CurrentUser == nil
	})

	// The second login presents the stored device.
	ctrl.Login("alice", "secret", h.srv.URL)
	waitForState(t, ctrl, "second login never completed", loggedIn)
	assert.Equal(t, []string{"", "DEVICE1"}, h.loginDevices())
}

func TestMatrixBadPasswordShowsError(t *testing.T) {
	h, s, _, ctrl := setupMatrixFlow(t)

	ctrl.Login("alice", "wrong", h.srv.URL)
	st := waitForState(t, ctrl, "failed login never settled", func(st state.AppState) bool {
		return st.ConnectionStatus == state.StatusError && !st.LoggingIn
	})

	assert.Equal(t, state.ViewLogin, st.View)
	assert.Nil(t, st.CurrentUser)
	assert.Contains(t, st.Error, "Invalid password")

	dev, err := s.DeviceID(h.srv.URL, "@alice:hs")
	require.NoError(t, err)
	assert.Empty(t, dev)
}

func TestMatrixTimelineAndSend(t *testing.T) {
	h, _, _, ctrl := setupMatrixFlow(t)

	ctrl.Login("alice", "secret", h.srv.URL)
	waitForState(t, ctrl, "login never completed", loggedIn)

	// Enter on the focused room list joins the selected room.
	ctrl.HandleKey(core.Key{Type: core.KeyEnter})
	waitForState(t, ctrl, "room members never loaded", func(st state.AppState) bool {
		return st.CurrentRoomID() == "!lobby:hs" && len(st.Users) == 2
	})

	h.live <- map[string]any{
		"next_batch": "s1",
		"rooms": map[string]any{"join": map[string]any{"!lobby:hs": map[string]any{
			"timeline": map[string]any{"events": []map[string]any{{
				"type":             "m.room.message",
				"event_id":         "$1",
				"sender":           "@bob:hs",
				"origin_server_ts": time.Now().UnixMilli(),
				"content":          map[string]any{"msgtype": "m.text", "body": "hello alice"},
			}}},
		}}},
	}
	st := waitForState(t, ctrl, "message never arrived", func(st state.AppState) bool {
		return len(st.Messages) == 1
	})
	assert.Equal(t, "hello alice", st.Messages[0].Content)
	assert.Equal(t, "Bob", st.Messages[0].From())

	require.NoError(t, ctrl.Dispatcher().SendMessage(t.Context(), "hi bob"))
	sent := h.sentEvents()
	require.Len(t, sent, 1)
	assert.Equal(t, "!lobby:hs", sent[0]["_room"])
	assert.Equal(t, "m.room.message", sent[0]["_type"])
	assert.Equal(t, "hi bob", sent[0]["body"])
}
