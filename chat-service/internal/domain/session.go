package domain

import (
	"sync"
	"time"
)

// Identity is the verified caller as reported by the identity component.
type Identity struct {
	ID          string
	Role        string
	DisplayName string
}

// Session is the per-connection state of an authenticated user.
type Session struct {
	ID           string
	Identity     Identity
	ConnectedAt  time.Time
	LastActiveAt time.Time
	rooms        map[string]struct{}
	mu           sync.RWMutex
}

func NewSession(id string, identity Identity) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Identity:     identity,
		ConnectedAt:  now,
		LastActiveAt: now,
		rooms:        make(map[string]struct{}),
	}
}

func (s *Session) UserID() string {
	return s.Identity.ID
}

func (s *Session) JoinRoom(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[chatID] = struct{}{}
	s.LastActiveAt = time.Now()
}

// LeaveRoom reports whether the session was in the room.
func (s *Session) LeaveRoom(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[chatID]
	delete(s.rooms, chatID)
	s.LastActiveAt = time.Now()
	return ok
}

func (s *Session) InRoom(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[chatID]
	return ok
}

// Rooms returns a snapshot of the joined chat ids.
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
