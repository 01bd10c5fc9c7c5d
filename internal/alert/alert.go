// Package alert plays the knock alert: a short run of terminal beeps and a
// desktop notification.
package alert

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/constants"
)

type (
	beepFunc   func(freq float64, durationMs int) error
	notifyFunc func(title, message string, icon any) error
)

var (
	beep   beepFunc   = beeep.Beep
	notify notifyFunc = beeep.Notify
)

// SetBeeper replaces the beep function. Tests only.
func SetBeeper(fn func(freq float64, durationMs int) error) { beep = fn }

// SetNotifier replaces the desktop notification function. Tests only.
func SetNotifier(fn func(title, message string, icon any) error) { notify = fn }

// Reset restores the beeep implementations.
func Reset() {
	beep = beeep.Beep
	notify = beeep.Notify
}

// Alerter plays knock alerts off the caller's goroutine. A knock that
// arrives while one is playing is dropped.
type Alerter struct {
	enabled bool
	gap     time.Duration

	mu      sync.Mutex
	playing bool
	wg      sync.WaitGroup
}

// New creates an Alerter. A disabled Alerter only logs.
func New(enabled bool) *Alerter {
	return &Alerter{enabled: enabled, gap: constants.KnockBeepGap}
}

// Knock alerts the user that from knocked with text.
func (a *Alerter) Knock(from, text string) {
	if !a.enabled {
		log.Debug().Str("from", from).Msg("Knock alert muted")
		return
	}

	a.mu.Lock()
	if a.playing {
		a.mu.Unlock()
		return
	}
	a.playing = true
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer func() {
			a.mu.Lock()
			a.playing = false
			a.mu.Unlock()
		}()
		a.play(from, text)
	}()
}

func (a *Alerter) play(from, text string) {
	ms := int(constants.KnockBeepDuration / time.Millisecond)
	for i := 0; i < constants.KnockBeeps; i++ {
		if i > 0 {
			time.Sleep(a.gap)
		}
		if err := beep(constants.KnockBeepFrequency, ms); err != nil {
			log.Warn().Err(err).Msg("Knock beep failed")
			break
		}
	}

	if err := notify(constants.AppName, "Knock from "+from+": "+text, ""); err != nil {
		log.Warn().Err(err).Msg("Knock notification failed")
	}
}

// Wait blocks until the alert in progress has finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}
