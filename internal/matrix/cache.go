package matrix

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/xonecas/nok/internal/chat"
)

type member struct {
	name   string
	avatar string
}

type roomState struct {
	id      string
	name    string
	alias   string
	topic   string
	avatar  string
	members map[string]member
}

// cache holds what the sync loop and enumeration calls have learned about
// rooms, members and presence.
type cache struct {
	mu       sync.RWMutex
	self     string
	rooms    map[string]*roomState
	order    []string
	presence map[string]string
	names    map[string]string
	dms      map[string]string
}

func newCache() *cache {
	c := &cache{}
	c.reset("")
	return c
}

func (c *cache) reset(self string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = self
	c.rooms = make(map[string]*roomState)
	c.order = nil
	c.presence = make(map[string]string)
	c.names = make(map[string]string)
	c.dms = make(map[string]string)
}

// room returns the state for id, creating it if needed. Callers hold mu.
func (c *cache) room(id string) *roomState {
	r, ok := c.rooms[id]
	if !ok {
		r = &roomState{id: id, members: make(map[string]member)}
		c.rooms[id] = r
		c.order = append(c.order, id)
	}
	return r
}

func (c *cache) ensureRoom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room(id)
}

func (c *cache) removeRoom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	for user, dm := range c.dms {
		if dm == id {
			delete(c.dms, user)
		}
	}
}

// retain drops every room not in ids and orders the rest like ids.
func (c *cache) retain(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
		c.room(id)
	}
	for id := range c.rooms {
		if !keep[id] {
			delete(c.rooms, id)
		}
	}
	c.order = slices.Clone(ids)
}

// applyState folds one state event into the room and reports whether it
// was a membership change.
func (c *cache) applyState(roomID string, ev event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.room(roomID)

	switch ev.Type {
	case "m.room.name":
		r.name = ev.str("name")
	case "m.room.canonical_alias":
		r.alias = ev.str("alias")
	case "m.room.topic":
		r.topic = ev.str("topic")
	case "m.room.avatar":
		r.avatar = ev.str("url")
	case "m.room.member":
		userID := *ev.StateKey
		if ev.str("membership") == "join" {
			r.members[userID] = member{name: ev.str("displayname"), avatar: ev.str("avatar_url")}
			if n := ev.str("displayname"); n != "" {
				c.names[userID] = n
			}
		} else {
			delete(r.members, userID)
		}
		return true
	}
	return false
}

func (c *cache) setMembers(roomID string, joined map[string]joinedMember) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.room(roomID)
	r.members = make(map[string]member, len(joined))
	for id, m := range joined {
		r.members[id] = member{name: m.DisplayName, avatar: m.AvatarURL}
		if m.DisplayName != "" {
			c.names[id] = m.DisplayName
		}
	}
}

func (c *cache) setPresence(userID, presence, displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence[userID] = presence
	if displayName != "" {
		c.names[userID] = displayName
	}
}

func (c *cache) setDM(userID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dms[userID] = roomID
}

// dm finds a room joined by exactly the local user and userID.
func (c *cache) dm(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.dms[userID]; ok {
		return id, true
	}
	for _, id := range c.order {
		r := c.rooms[id]
		if len(r.members) != 2 {
			continue
		}
		_, peer := r.members[userID]
		_, me := r.members[c.self]
		if peer && me {
			return id, true
		}
	}
	return "", false
}

// displayName resolves the best name for userID, preferring the room's
// member event.
func (c *cache) displayName(roomID, userID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.rooms[roomID]; ok {
		if m, ok := r.members[userID]; ok && m.name != "" {
			return m.name
		}
	}
	if n := c.names[userID]; n != "" {
		return n
	}
	return localpart(userID)
}

func (c *cache) chatRoom(id string) (chat.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[id]
	if !ok {
		return chat.Room{}, false
	}

	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Strings(members)

	name := r.name
	if name == "" {
		name = r.alias
	}
	if name == "" {
		var others []string
		for _, id := range members {
			if id != c.self {
				others = append(others, c.nameLocked(id))
			}
		}
		name = strings.Join(others, ", ")
	}
	if name == "" {
		name = "Unnamed Room"
	}

	return chat.Room{
		ID:        r.id,
		Name:      name,
		Alias:     r.alias,
		Topic:     r.topic,
		Members:   members,
		AvatarURL: r.avatar,
	}, true
}

func (c *cache) chatRooms() []chat.Room {
	c.mu.RLock()
	order := slices.Clone(c.order)
	c.mu.RUnlock()

	rooms := make([]chat.Room, 0, len(order))
	for _, id := range order {
		if r, ok := c.chatRoom(id); ok {
			rooms = append(rooms, r)
		}
	}
	return rooms
}

// users lists the joined members of roomID, or of every room when roomID
// is "", sorted by display name.
func (c *cache) users(roomID string) []chat.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]string)
	add := func(r *roomState) {
		for id, m := range r.members {
			if _, ok := seen[id]; !ok || seen[id] == "" {
				seen[id] = m.avatar
			}
		}
	}
	if roomID != "" {
		if r, ok := c.rooms[roomID]; ok {
			add(r)
		}
	} else {
		for _, r := range c.rooms {
			add(r)
		}
		for id := range c.presence {
			if _, ok := seen[id]; !ok {
				seen[id] = ""
			}
		}
	}

	users := make([]chat.User, 0, len(seen))
	for id, avatar := range seen {
		name := c.nameLocked(id)
		if roomID != "" {
			if m := c.rooms[roomID].members[id]; m.name != "" {
				name = m.name
			}
		}
		users = append(users, chat.User{
			ID:     id,
			Name:   name,
			Status: chat.ParseUserStatus(c.presence[id]),
			Avatar: avatar,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (c *cache) nameLocked(userID string) string {
	if n := c.names[userID]; n != "" {
		return n
	}
	return localpart(userID)
}
