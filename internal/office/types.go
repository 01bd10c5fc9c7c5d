package office

import (
	"fmt"
	"time"
)

type apiUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type apiRoom struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	MemberCount int    `json:"member_count"`
}

type createUserRequest struct {
	Name string `json:"name"`
}

// outbound is a message written to the websocket.
type outbound struct {
	Type         string `json:"type"`
	UserID       string `json:"user_id,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
	RoomID       string `json:"room_id,omitempty"`
	Content      string `json:"content,omitempty"`
	Status       string `json:"status,omitempty"`
}

// inbound is any message the server pushes over the websocket.
type inbound struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	RoomID     string `json:"room_id"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Status     string `json:"status"`
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// parseTimestamp reads the server's ISO timestamps; naive ones are UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
