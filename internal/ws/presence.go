package ws

import (
	"fmt"
	"sync"
)

// ConversationRoom is the room key for a conversation's live participants.
func ConversationRoom(conversationID int64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// UserRoom is the private per-user room every session of that user joins.
// Events addressed here reach the user even for conversations created
// after the session's handshake.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Presence is the registry of live sessions and their room memberships.
// It keeps the inverse index (room -> sessions) for fanout. A user may
// hold several concurrent sessions; each is tracked by its connection id.
type Presence struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	rooms        map[string]map[string]*Session
	sessionRooms map[string]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		sessions:     make(map[string]*Session),
		rooms:        make(map[string]map[string]*Session),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a session. It carries no room memberships yet.
func (p *Presence) Attach(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions[s.ID] = s
	if p.sessionRooms[s.ID] == nil {
		p.sessionRooms[s.ID] = make(map[string]struct{})
	}
}

// Subscribe adds the session to a room. Idempotent; a no-op for sessions
// that were never attached or have already been dropped.
func (p *Presence) Subscribe(s *Session, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[s.ID]; !ok {
		return
	}
	if p.rooms[room] == nil {
		p.rooms[room] = make(map[string]*Session)
	}
	p.rooms[room][s.ID] = s
	p.sessionRooms[s.ID][room] = struct{}{}
}

// Unsubscribe removes the session from a room. Idempotent.
func (p *Presence) Unsubscribe(s *Session, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveLocked(s.ID, room)
}

// Drop removes the session and all of its memberships. Safe to call more
// than once; disconnect paths may race.
func (p *Presence) Drop(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for room := range p.sessionRooms[s.ID] {
		p.leaveLocked(s.ID, room)
	}
	delete(p.sessionRooms, s.ID)
	delete(p.sessions, s.ID)
}

func (p *Presence) leaveLocked(sessionID, room string) {
	if members, ok := p.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(p.rooms, room)
		}
	}
	if rooms, ok := p.sessionRooms[sessionID]; ok {
		delete(rooms, room)
	}
}

// Collect returns every session subscribed to any of the given rooms,
// deduplicated by session id. The snapshot is taken under the read lock;
// callers deliver to it without holding any Presence state.
func (p *Presence) Collect(rooms ...string) []*Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{})
	var res []*Session
	for _, room := range rooms {
		for id, s := range p.rooms[room] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			res = append(res, s)
		}
	}
	return res
}
