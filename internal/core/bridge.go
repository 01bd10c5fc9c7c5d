package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/state"
)

// msgTypes maps the msgtype content key to a domain message type.
var msgTypes = map[string]chat.MessageType{
	"m.text":   chat.MessageTypeText,
	"m.notice": chat.MessageTypeNotice,
	"m.emote":  chat.MessageTypeEmote,
}

// knockTags are the event types that carry a knock: the custom Matrix event
// and the office backend's message type.
var knockTags = map[string]bool{
	chat.KnockEventType: true,
	"knock":             true,
}

var errMalformed = errors.New("malformed payload")

const connErrPrefix = "Connection error: "

// Bridge turns backend events into store mutations.
type Bridge struct {
	svc      chat.Service
	store    *state.Store
	notifier *Notifier
	alerter  Alerter
	timing   Timing

	// rosterChanged runs after membership and presence events.
	rosterChanged func()

	mu   sync.Mutex
	subs map[chat.Category]chat.Subscription
}

// NewBridge creates a bridge. rosterChanged may be nil.
func NewBridge(svc chat.Service, s *state.Store, n *Notifier, a Alerter, timing Timing, rosterChanged func()) *Bridge {
	if a == nil {
		a = nopAlerter{}
	}
	return &Bridge{
		svc:           svc,
		store:         s,
		notifier:      n,
		alerter:       a,
		timing:        timing,
		rosterChanged: rosterChanged,
		subs:          make(map[chat.Category]chat.Subscription),
	}
}

// Start subscribes to every category not already subscribed.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := map[chat.Category]func(chat.Event) error{
		chat.CategoryTimeline:       b.onTimeline,
		chat.CategoryMembership:     b.onRoster,
		chat.CategoryPresence:       b.onRoster,
		chat.CategoryTransportError: b.onTransportError,
		chat.CategoryReconnected:    b.onReconnected,
	}
	for _, cat := range chat.Categories {
		if _, ok := b.subs[cat]; ok {
			continue
		}
		sub := b.svc.Subscribe(cat, b.guard(cat, handlers[cat]))
		if sub.Valid() {
			b.subs[cat] = sub
		}
	}
}

// Stop removes every subscription made by Start.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for cat, sub := range b.subs {
		b.svc.Unsubscribe(sub)
		delete(b.subs, cat)
	}
}

// Active reports whether the bridge holds any subscription.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) > 0
}

// guard isolates the store from a misbehaving handler or payload.
func (b *Bridge) guard(cat chat.Category, fn func(chat.Event) error) chat.Handler {
	return func(ev chat.Event) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("category", string(cat)).Interface("panic", r).Msg("Event handler panicked")
			}
		}()
		if err := fn(ev); err != nil {
			log.Warn().Err(err).Str("category", string(cat)).Msg("Dropped event")
		}
	}
}

func (b *Bridge) onTimeline(ev chat.Event) error {
	p, ok := ev.Payload.(chat.TimelinePayload)
	if !ok {
		return fmt.Errorf("%w: %T", errMalformed, ev.Payload)
	}
	msg, err := toMessage(p)
	if err != nil {
		return err
	}

	if msg.Type != chat.MessageTypeKnock {
		b.store.AddMessage(msg)
		return nil
	}

	var gen uint64
	b.store.Update(func(st *state.AppState) {
		st.AddMessage(msg)
		gen = st.SetNotification("🔔 Knock from " + msg.From())
	})
	b.notifier.Expire(gen, b.timing.NotificationTTL)
	b.alerter.Knock(msg.From(), msg.Content)
	log.Info().Str("from", msg.Sender).Str("room", msg.RoomID).Msg("Knock received")
	return nil
}

func (b *Bridge) onRoster(ev chat.Event) error {
	switch p := ev.Payload.(type) {
	case chat.MembershipPayload:
		log.Debug().Str("room", p.RoomID).Str("user", p.UserID).Str("membership", p.Membership).Msg("Membership changed")
	case chat.PresencePayload:
		log.Debug().Str("user", p.UserID).Str("presence", p.Presence).Msg("Presence changed")
	default:
		return fmt.Errorf("%w: %T", errMalformed, ev.Payload)
	}
	if b.rosterChanged != nil {
		b.rosterChanged()
	}
	return nil
}

func (b *Bridge) onTransportError(ev chat.Event) error {
	p, ok := ev.Payload.(chat.TransportErrorPayload)
	if !ok || p.Err == nil {
		return fmt.Errorf("%w: %T", errMalformed, ev.Payload)
	}
	b.store.Update(func(st *state.AppState) {
		st.SetError(connErrPrefix + p.Err.Error())
		st.SetConnectionStatus(state.StatusError)
	})
	return nil
}

// onReconnected undoes onTransportError. Errors from other sources stay.
func (b *Bridge) onReconnected(ev chat.Event) error {
	if _, ok := ev.Payload.(chat.ReconnectedPayload); !ok {
		return fmt.Errorf("%w: %T", errMalformed, ev.Payload)
	}
	b.store.Update(func(st *state.AppState) {
		if st.CurrentUser == nil || st.ConnectionStatus != state.StatusError {
			return
		}
		if strings.HasPrefix(st.Error, connErrPrefix) {
			st.SetError("")
		}
		st.SetConnectionStatus(state.StatusConnected)
	})
	log.Info().Msg("Event stream recovered")
	return nil
}

// toMessage maps a wire timeline event to a domain message.
func toMessage(p chat.TimelinePayload) (chat.Message, error) {
	if p.EventID == "" || p.Sender == "" {
		return chat.Message{}, fmt.Errorf("%w: missing id or sender", errMalformed)
	}

	msg := chat.Message{
		ID:         p.EventID,
		Sender:     p.Sender,
		SenderName: p.SenderName,
		RoomID:     p.RoomID,
		Timestamp:  time.UnixMilli(p.OriginTS),
		Type:       chat.MessageTypeText,
	}
	if p.OriginTS == 0 {
		msg.Timestamp = time.Now()
	}

	body, isString := p.Content["body"].(string)
	if _, present := p.Content["body"]; present && !isString {
		return chat.Message{}, fmt.Errorf("%w: body is %T", errMalformed, p.Content["body"])
	}

	if knockTags[p.EventType] {
		msg.Type = chat.MessageTypeKnock
		text, _ := p.Content["message"].(string)
		if text == "" {
			text = body
		}
		if text == "" {
			text = chat.DefaultKnockText
		}
		msg.Content = text
		return msg, nil
	}

	if !isString {
		return chat.Message{}, fmt.Errorf("%w: no body", errMalformed)
	}
	if mt, ok := p.Content["msgtype"].(string); ok {
		if t, known := msgTypes[mt]; known {
			msg.Type = t
		}
	}
	msg.Content = body
	return msg, nil
}
