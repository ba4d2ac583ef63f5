package service

import (
	"context"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
)

// Broadcaster fans an event out to every live connection joined to a room.
// Implemented by hub.Hub.
type Broadcaster interface {
	BroadcastToRoom(chatID string, ev domain.Event, exclude string) error
}

// ChatService is the websocket-facing surface. Every method gets the
// authenticated client the command arrived on.
type ChatService interface {
	HandleConnect(ctx context.Context, client *hub.Client)
	HandleJoinRoom(ctx context.Context, client *hub.Client, cmd *domain.JoinRoomCommand) error
	HandleLeaveRoom(ctx context.Context, client *hub.Client, cmd *domain.LeaveRoomCommand) error
	HandleSendMessage(ctx context.Context, client *hub.Client, cmd *domain.SendMessageCommand) error
	HandleRespondInvitation(ctx context.Context, client *hub.Client, cmd *domain.RespondInvitationCommand) error
	HandleTyping(ctx context.Context, client *hub.Client, chatID string, typing bool) error
	HandleDisconnect(ctx context.Context, client *hub.Client)
	Start(ctx context.Context) error
	Stop() error
}

// SendRequest is one message submission.
type SendRequest struct {
	ChatID          string
	SenderID        string
	Content         string
	Type            domain.MessageType
	ClientMessageID string
}

// CreateInvitationRequest asks to invite InviteeID into ChatID. A zero TTL
// uses the configured default.
type CreateInvitationRequest struct {
	ChatID    string
	InviterID string
	InviteeID string
	Message   string
	TTL       time.Duration
}

// CreateChatRequest creates a chat owned by CreatorID.
type CreateChatRequest struct {
	CreatorID string
	Type      domain.ChatType
	Name      string
	MemberIDs []string
}

// ChatSummary is a chat as listed for one user.
type ChatSummary struct {
	domain.ChatPayload
	UnreadCount int64 `json:"unreadCount"`
}
