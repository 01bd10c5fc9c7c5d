// Package core arbitrates between keyboard input and backend events and
// applies both to the state store.
package core

import (
	"time"

	"github.com/xonecas/nok/internal/constants"
)

// KeyType identifies a non-printable key, or KeyRunes for text.
type KeyType int

const (
	KeyRunes KeyType = iota
	KeyEnter
	KeyEsc
	KeyTab
	KeyShiftTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyCtrlC
	KeyOther
)

// Key is a renderer-agnostic keystroke.
type Key struct {
	Type  KeyType
	Runes []rune
	// Alt and Ctrl mark chorded keys; they are never typed into the buffer.
	Alt  bool
	Ctrl bool
}

// RuneKey returns the key for a single printable rune.
func RuneKey(r rune) Key {
	return Key{Type: KeyRunes, Runes: []rune{r}}
}

// is reports whether k is exactly the unmodified rune r.
func (k Key) is(r rune) bool {
	return k.Type == KeyRunes && !k.Alt && !k.Ctrl && len(k.Runes) == 1 && k.Runes[0] == r
}

// Action tells the renderer what to do after a key was handled.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
)

// Timing holds the lifetimes of ephemeral UI state.
type Timing struct {
	// NotificationTTL applies to login and knock banners.
	NotificationTTL time.Duration
	// ShortNotificationTTL applies to knock-sent and joined banners.
	ShortNotificationTTL time.Duration
}

// DefaultTiming returns the standard banner lifetimes.
func DefaultTiming() Timing {
	return Timing{
		NotificationTTL:      constants.NotificationTTL,
		ShortNotificationTTL: constants.ShortNotificationTTL,
	}
}

// Alerter announces an incoming knock outside the terminal view.
type Alerter interface {
	Knock(from, text string)
}

type nopAlerter struct{}

func (nopAlerter) Knock(string, string) {}
