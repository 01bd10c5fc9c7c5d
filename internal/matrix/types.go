package matrix

import (
	"fmt"
	"strings"
)

// Wire types for the subset of the client-server API nok uses.

type identifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type loginRequest struct {
	Type                     string     `json:"type"`
	Identifier               identifier `json:"identifier"`
	Password                 string     `json:"password"`
	DeviceID                 string     `json:"device_id,omitempty"`
	InitialDeviceDisplayName string     `json:"initial_device_display_name,omitempty"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

type joinedRoomsResponse struct {
	JoinedRooms []string `json:"joined_rooms"`
}

type joinedMember struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type joinedMembersResponse struct {
	Joined map[string]joinedMember `json:"joined"`
}

type roomIDResponse struct {
	RoomID string `json:"room_id"`
}

type sendResponse struct {
	EventID string `json:"event_id"`
}

type createRoomRequest struct {
	Invite   []string `json:"invite"`
	IsDirect bool     `json:"is_direct"`
	Preset   string   `json:"preset"`
}

type displayNameResponse struct {
	DisplayName string `json:"displayname"`
}

// event is a client event as it appears in /sync and /state responses.
type event struct {
	Type           string         `json:"type"`
	EventID        string         `json:"event_id"`
	Sender         string         `json:"sender"`
	StateKey       *string        `json:"state_key,omitempty"`
	Content        map[string]any `json:"content"`
	OriginServerTS int64          `json:"origin_server_ts"`
}

func (e event) isState() bool {
	return e.StateKey != nil
}

func (e event) str(key string) string {
	s, _ := e.Content[key].(string)
	return s
}

type eventList struct {
	Events []event `json:"events"`
}

type joinedRoomSync struct {
	State    eventList `json:"state"`
	Timeline eventList `json:"timeline"`
}

type leftRoomSync struct {
	Timeline eventList `json:"timeline"`
}

type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join  map[string]joinedRoomSync `json:"join"`
		Leave map[string]leftRoomSync   `json:"leave"`
	} `json:"rooms"`
	Presence eventList `json:"presence"`
}

// HTTPError is a non-2xx response from the homeserver.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

func (e *HTTPError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// localpart returns "alice" for "@alice:server".
func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}

// qualify turns a bare username into a full user ID on server.
func qualify(username, server string) string {
	if strings.HasPrefix(username, "@") {
		return username
	}
	return "@" + username + ":" + server
}
