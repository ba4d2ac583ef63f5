package registry

import (
	"context"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

// Conn is a live connection that can receive events.
type Conn interface {
	ID() string
	SendEvent(ev domain.Event) error
	Close()
}

// Registry maps a user to their single live connection.
type Registry interface {
	// Register stores conn for userID and returns the connection it displaced, if any.
	Register(ctx context.Context, userID string, conn Conn) Conn
	Lookup(userID string) (Conn, bool)
	// Remove deletes the entry only while it still points at conn.
	Remove(ctx context.Context, userID string, conn Conn) bool
	Count() int
}

// Mirror publishes local connection ownership to a shared store.
type Mirror interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}
