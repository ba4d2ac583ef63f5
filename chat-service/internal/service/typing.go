package service

import (
	"sync"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

type typingKey struct {
	chatID string
	userID string
}

type typingEntry struct {
	connID      string
	displayName string
	timer       *time.Timer
	gen         uint64
}

// TypingBroadcaster tracks who is typing where. State is in memory only and
// every indicator is evicted after ttl unless refreshed by another start.
type TypingBroadcaster struct {
	rooms  Broadcaster
	ttl    time.Duration
	mu     sync.Mutex
	active map[typingKey]*typingEntry
	gen    uint64
}

func NewTypingBroadcaster(rooms Broadcaster, ttl time.Duration) *TypingBroadcaster {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return &TypingBroadcaster{
		rooms:  rooms,
		ttl:    ttl,
		active: make(map[typingKey]*typingEntry),
	}
}

// Start marks the user typing. Only the first start broadcasts; later ones
// push the eviction deadline out.
func (t *TypingBroadcaster) Start(chatID, userID, displayName, connID string) {
	key := typingKey{chatID: chatID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	gen := t.gen
	if entry, ok := t.active[key]; ok {
		entry.timer.Stop()
		entry.gen = gen
		entry.connID = connID
		entry.timer = time.AfterFunc(t.ttl, func() { t.expire(key, gen) })
		return
	}

	t.active[key] = &typingEntry{
		connID:      connID,
		displayName: displayName,
		gen:         gen,
		timer:       time.AfterFunc(t.ttl, func() { t.expire(key, gen) }),
	}
	t.broadcast(key, displayName, connID, true)
}

// Stop clears the indicator. Stopping a user who is not typing is a no-op.
func (t *TypingBroadcaster) Stop(chatID, userID string) {
	key := typingKey{chatID: chatID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.active[key]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(t.active, key)
	t.broadcast(key, entry.displayName, entry.connID, false)
}

// ClearConnection stops every indicator connID owns in the given rooms.
// Indicators since taken over by a newer connection are left alone.
func (t *TypingBroadcaster) ClearConnection(userID, connID string, chatIDs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, chatID := range chatIDs {
		key := typingKey{chatID: chatID, userID: userID}
		entry, ok := t.active[key]
		if !ok || entry.connID != connID {
			continue
		}
		entry.timer.Stop()
		delete(t.active, key)
		t.broadcast(key, entry.displayName, connID, false)
	}
}

// IsTyping reports whether an indicator is live.
func (t *TypingBroadcaster) IsTyping(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[typingKey{chatID: chatID, userID: userID}]
	return ok
}

func (t *TypingBroadcaster) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.active[key]
	if !ok || entry.gen != gen {
		return
	}
	delete(t.active, key)
	t.broadcast(key, entry.displayName, entry.connID, false)

	l := log.L()
	l.Debug().Str(log.FieldChatID, key.chatID).Str(log.FieldUserID, key.userID).Msg("typing indicator evicted")
}

// broadcast must be called with mu held so start and stop reach the hub in order.
func (t *TypingBroadcaster) broadcast(key typingKey, displayName, connID string, typing bool) {
	ev := &domain.TypingEvent{
		ChatID:      key.chatID,
		UserID:      key.userID,
		DisplayName: displayName,
		Typing:      typing,
	}
	if err := t.rooms.BroadcastToRoom(key.chatID, ev, connID); err != nil {
		l := log.L()
		l.Debug().Err(err).Str(log.FieldChatID, key.chatID).Msg("typing broadcast failed")
	}
}
