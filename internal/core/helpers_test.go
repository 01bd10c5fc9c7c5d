package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

type sent struct {
	target string
	text   string
}

// fakeService is an in-memory chat.Service whose events are published by
// the test through its embedded bus.
type fakeService struct {
	*chat.Bus

	mu        sync.Mutex
	user      *chat.User
	rooms     []chat.Room
	users     map[string][]chat.User
	loginErr  error
	logoutErr error
	roomsErr  error
	usersErr  error
	sendErr   error
	knockErr  error
	joinErr   error
	loginGate chan struct{}
	// usersGates holds Users(roomID) until the channel is closed,
	// regardless of cancellation.
	usersGates map[string]chan struct{}

	logins   int
	messages []sent
	knocks   []sent
	joined   []string
	usersFor []string
}

func newFakeService() *fakeService {
	return &fakeService{
		Bus:   chat.NewBus(),
		user:  &chat.User{ID: "@alice:nok.local", Name: "alice", Status: chat.UserStatusOnline},
		rooms: []chat.Room{{ID: "!lobby:nok.local", Name: "Lobby"}, {ID: "!dev:nok.local", Name: "Dev"}},
		users: map[string][]chat.User{
			"": {
				{ID: "@alice:nok.local", Name: "alice"},
				{ID: "@bob:nok.local", Name: "bob"},
			},
			"!lobby:nok.local": {{ID: "@bob:nok.local", Name: "bob"}},
		},
	}
}

func (f *fakeService) Login(ctx context.Context, username, password, baseURL string) (*chat.User, error) {
	f.mu.Lock()
	gate := f.loginGate
	f.logins++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, &chat.AuthError{Err: f.loginErr}
	}
	u := *f.user
	return &u, nil
}

func (f *fakeService) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutErr
}

func (f *fakeService) Rooms(ctx context.Context) ([]chat.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomsErr != nil {
		return nil, f.roomsErr
	}
	return append([]chat.Room(nil), f.rooms...), nil
}

func (f *fakeService) Users(ctx context.Context, roomID string) ([]chat.User, error) {
	f.mu.Lock()
	f.usersFor = append(f.usersFor, roomID)
	gate := f.usersGates[roomID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return append([]chat.User(nil), f.users[roomID]...), nil
}

func (f *fakeService) SendMessage(ctx context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return &chat.SendError{Err: f.sendErr}
	}
	f.messages = append(f.messages, sent{roomID, text})
	return nil
}

func (f *fakeService) SendKnock(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.knockErr != nil {
		return &chat.SendError{Err: f.knockErr}
	}
	f.knocks = append(f.knocks, sent{userID, text})
	return nil
}

func (f *fakeService) JoinRoom(ctx context.Context, idOrAlias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return &chat.JoinError{Room: idOrAlias, Err: f.joinErr}
	}
	f.joined = append(f.joined, idOrAlias)
	return nil
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeService) get(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingAlerter struct {
	mu    sync.Mutex
	calls []sent
}

func (a *recordingAlerter) Knock(from, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, sent{from, text})
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

var errBoom = errors.New("boom")

// testTiming keeps banners short enough to watch them expire.
var testTiming = Timing{
	NotificationTTL:      150 * time.Millisecond,
	ShortNotificationTTL: 100 * time.Millisecond,
}

func setupControllerTest(t *testing.T) (*Controller, *fakeService, *recordingAlerter, func()) {
	t.Helper()

	svc := newFakeService()
	alerter := &recordingAlerter{}
	c := NewController(context.Background(), svc, Options{Timing: testTiming, Alerter: alerter})

	cleanup := func() {
		c.Close()
		svc.Close()
	}
	return c, svc, alerter, cleanup
}

// waitFor polls the store until cond holds or the timeout expires.
func waitFor(t *testing.T, s *state.Store, timeout time.Duration, desc string, cond func(state.AppState) bool) state.AppState {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		st := s.Snapshot()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state: view=%s status=%s err=%q note=%q",
				desc, st.View, st.ConnectionStatus, st.Error, st.Notification)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// loggedIn runs a synchronous login and opens the main view.
func loggedIn(t *testing.T, c *Controller) {
	t.Helper()
	if !c.Dispatcher().Login(context.Background(), "alice", "secret", "") {
		t.Fatalf("login failed: %s", c.Snapshot().Error)
	}
	c.Store().SetView(state.ViewMain)
}
