package chat

import (
	"context"
	"time"
)

// Category identifies a stream of backend events.
type Category string

const (
	CategoryTimeline       Category = "timeline-message"
	CategoryMembership     Category = "membership-change"
	CategoryPresence       Category = "presence-change"
	CategoryTransportError Category = "transport-error"
	CategoryReconnected    Category = "transport-reconnected"
)

// Categories lists every category a backend publishes, in subscription order.
var Categories = []Category{
	CategoryTimeline,
	CategoryMembership,
	CategoryPresence,
	CategoryTransportError,
	CategoryReconnected,
}

// Event is one delivery from a backend. Payload holds the wire-level
// representation (one of the *Payload types below); consumers translate it.
type Event struct {
	Category  Category
	Payload   any
	Timestamp time.Time
}

// Handler receives events for a single category.
type Handler func(Event)

// Subscription is an opaque handle returned by Subscribe.
type Subscription struct {
	id       uint64
	category Category
}

// Category returns the category the subscription was made for.
func (s Subscription) Category() Category {
	return s.category
}

// Valid reports whether s was returned by a Subscribe call.
func (s Subscription) Valid() bool {
	return s.id != 0
}

// TimelinePayload is a raw timeline event. EventType and the msgtype key of
// Content carry the wire tags that decide the domain MessageType.
type TimelinePayload struct {
	EventID    string
	EventType  string
	RoomID     string
	Sender     string
	SenderName string
	Content    map[string]any
	OriginTS   int64
}

// MembershipPayload reports a join, leave, invite or ban.
type MembershipPayload struct {
	RoomID     string
	UserID     string
	Membership string
}

// PresencePayload reports a presence change for one user.
type PresencePayload struct {
	UserID      string
	Presence    string
	DisplayName string
}

// TransportErrorPayload reports a failure of the event stream.
type TransportErrorPayload struct {
	Err error
}

// ReconnectedPayload reports that the event stream works again after a
// transport error.
type ReconnectedPayload struct{}

// Service is the messaging backend consumed by the controller.
type Service interface {
	// Login authenticates and starts the event stream. baseURL may be empty
	// to use the configured server.
	Login(ctx context.Context, username, password, baseURL string) (*User, error)
	Logout(ctx context.Context) error

	Rooms(ctx context.Context) ([]Room, error)
	// Users lists members of roomID, or every known user when roomID is "".
	Users(ctx context.Context, roomID string) ([]User, error)

	SendMessage(ctx context.Context, roomID, text string) error
	SendKnock(ctx context.Context, userID, text string) error
	JoinRoom(ctx context.Context, idOrAlias string) error

	Subscribe(category Category, handler Handler) Subscription
	Unsubscribe(sub Subscription)
}
