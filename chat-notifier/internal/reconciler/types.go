package reconciler

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnauthenticated is returned by a Fetcher when the server rejects the
// session's credentials. It opens the circuit until Reset.
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	ErrCircuitOpen  = errors.New("reconciler circuit open")
	ErrTickInFlight = errors.New("reconciler tick already in flight")
)

// Sender is the author profile attached to a polled message.
type Sender struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar,omitempty"`
}

// Message is one entry of the recent-messages window.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    Sender    `json:"sender"`
}

// Fetcher loads the caller's most recent messages across all chats, newest
// first.
type Fetcher interface {
	FetchRecent(ctx context.Context, limit int) ([]Message, error)
}

// Notification is what the display layer shows for one surfaced message.
// Consumers dedupe on MessageID: a message seen live may surface again here.
type Notification struct {
	MessageID  string
	ChatID     string
	SenderID   string
	SenderName string
	Preview    string
	CreatedAt  time.Time
	// Escalate asks for an OS-level notification in addition to the in-app one.
	Escalate bool
}

// Sink receives notifications in oldest-first order. Unavailable is called
// once each time the circuit opens.
type Sink interface {
	Notify(n Notification)
	Unavailable(reason error)
}

func senderName(m Message) string {
	name := strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName)
	if name == "" {
		return m.SenderID
	}
	return name
}

func preview(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if max <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
