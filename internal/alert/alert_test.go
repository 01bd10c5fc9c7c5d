package alert

import (
	"errors"
	"sync"
	"testing"

	"github.com/xonecas/nok/internal/constants"
)

type recorder struct {
	mu      sync.Mutex
	beeps   []float64
	notes   []string
	beepErr error
	gate    chan struct{}
}

func (r *recorder) beep(freq float64, ms int) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beeps = append(r.beeps, freq)
	return r.beepErr
}

func (r *recorder) notify(title, message string, icon any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, title+"|"+message)
	return nil
}

func install(t *testing.T, r *recorder) {
	t.Helper()
	SetBeeper(r.beep)
	SetNotifier(r.notify)
	t.Cleanup(Reset)
}

func TestKnockBeepsAndNotifies(t *testing.T) {
	r := &recorder{}
	install(t, r)

	a := New(true)
	a.gap = 0
	a.Knock("Bob", "knock knock!")
	a.Wait()

	if len(r.beeps) != constants.KnockBeeps {
		t.Errorf("expected %d beeps, got %d", constants.KnockBeeps, len(r.beeps))
	}
	if r.beeps[0] != constants.KnockBeepFrequency {
		t.Errorf("expected frequency %v, got %v", constants.KnockBeepFrequency, r.beeps[0])
	}
	if len(r.notes) != 1 || r.notes[0] != "nok|Knock from Bob: knock knock!" {
		t.Errorf("unexpected notifications: %v", r.notes)
	}
}

func TestKnockDisabled(t *testing.T) {
	r := &recorder{}
	install(t, r)

	a := New(false)
	a.Knock("Bob", "hi")
	a.Wait()

	if len(r.beeps) != 0 || len(r.notes) != 0 {
		t.Errorf("disabled alerter made noise: beeps=%d notes=%d", len(r.beeps), len(r.notes))
	}
}

func TestBeepFailureStillNotifies(t *testing.T) {
	r := &recorder{beepErr: errors.New("no speaker")}
	install(t, r)

	a := New(true)
	a.gap = 0
	a.Knock("Bob", "hi")
	a.Wait()

	if len(r.beeps) != 1 {
		t.Errorf("expected beeping to stop after first failure, got %d beeps", len(r.beeps))
	}
	if len(r.notes) != 1 {
		t.Errorf("expected notification despite beep failure, got %d", len(r.notes))
	}
}

func TestOverlappingKnockDropped(t *testing.T) {
	r := &recorder{gate: make(chan struct{})}
	install(t, r)

	a := New(true)
	a.gap = 0
	a.Knock("Bob", "one")
	a.Knock("Carol", "two")
	close(r.gate)
	a.Wait()

	if len(r.notes) != 1 || r.notes[0] != "nok|Knock from Bob: one" {
		t.Errorf("expected only the first knock, got %v", r.notes)
	}
}
