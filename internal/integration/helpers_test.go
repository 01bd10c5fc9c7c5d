// Package integration runs the controller against real backend clients
// talking to in-process fake servers.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xonecas/nok/internal/alert"
	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/core"
	"github.com/xonecas/nok/internal/state"
)

const waitTimeout = 3 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// alertLog records what the alerter played instead of touching the
// speaker and the desktop.
type alertLog struct {
	mu      sync.Mutex
	beeps   int
	notices []string
}

func (l *alertLog) count() (int, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.beeps, append([]string(nil), l.notices...)
}

func stubAlerts(t *testing.T) *alertLog {
	t.Helper()
	l := &alertLog{}
	alert.SetBeeper(func(float64, int) error {
		l.mu.Lock()
		l.beeps++
		l.mu.Unlock()
		return nil
	})
	alert.SetNotifier(func(title, message string, _ any) error {
		l.mu.Lock()
		l.notices = append(l.notices, message)
		l.mu.Unlock()
		return nil
	})
	t.Cleanup(alert.Reset)
	return l
}

// startController wires svc into a controller with a real alerter.
func startController(t *testing.T, svc chat.Service) (*core.Controller, *alert.Alerter) {
	t.Helper()
	a := alert.New(true)
	ctrl := core.NewController(context.Background(), svc, core.Options{
		Timing: core.Timing{
			NotificationTTL:      time.Second,
			ShortNotificationTTL: time.Second,
		},
		Alerter: a,
	})
	t.Cleanup(func() {
		ctrl.Close()
		a.Wait()
	})
	return ctrl, a
}

func waitForState(t *testing.T, ctrl *core.Controller, msg string, cond func(state.AppState) bool) state.AppState {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(ctrl.Snapshot())
	}, waitTimeout, 10*time.Millisecond, msg)
	return ctrl.Snapshot()
}

func loggedIn(st state.AppState) bool {
	return st.View == state.ViewMain && st.CurrentUser != nil &&
		st.ConnectionStatus == state.StatusConnected && !st.LoggingIn
}
