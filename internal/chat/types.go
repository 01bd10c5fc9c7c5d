// Package chat defines the entities shared by every layer of nok and the
// contract a messaging backend has to satisfy.
package chat

import (
	"slices"
	"time"
)

// UserStatus is a user's presence as reported by the server.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusAway    UserStatus = "away"
	UserStatusBusy    UserStatus = "busy"
	UserStatusOffline UserStatus = "offline"
)

// ParseUserStatus maps a wire presence string to a UserStatus.
// Matrix reports "unavailable" for away users; anything unknown is Offline.
func ParseUserStatus(s string) UserStatus {
	switch s {
	case "online":
		return UserStatusOnline
	case "unavailable", "away":
		return UserStatusAway
	case "busy":
		return UserStatusBusy
	default:
		return UserStatusOffline
	}
}

// User is a chat participant. ID never changes; Name and Status follow
// presence updates.
type User struct {
	ID     string
	Name   string
	Status UserStatus
	Avatar string
}

// Room is a joined conversation.
type Room struct {
	ID        string
	Name      string
	Alias     string
	Topic     string
	Members   []string
	AvatarURL string
}

// Clone returns a copy of r that shares no memory with it.
func (r Room) Clone() Room {
	r.Members = slices.Clone(r.Members)
	return r
}

// HasMember reports whether userID is in the room's member list.
func (r Room) HasMember(userID string) bool {
	return slices.Contains(r.Members, userID)
}

// MessageType distinguishes the kinds of timeline entries.
type MessageType string

const (
	MessageTypeText   MessageType = "m.text"
	MessageTypeKnock  MessageType = "com.nok.knock"
	MessageTypeNotice MessageType = "m.notice"
	MessageTypeEmote  MessageType = "m.emote"
)

// KnockEventType is the custom event type used to deliver knocks.
const KnockEventType = string(MessageTypeKnock)

// DefaultKnockText is the body used for knocks sent without a message.
const DefaultKnockText = "knock knock!"

// Message is an immutable timeline entry.
type Message struct {
	ID         string
	Sender     string
	SenderName string
	Content    string
	Timestamp  time.Time
	RoomID     string
	Type       MessageType
}

// From returns the best label for the message author.
func (m Message) From() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.Sender
}
