package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

var (
	ErrChatNotFound         = errors.New("chat not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationNotPending = errors.New("invitation not pending or expired")
	ErrAlreadyParticipant   = errors.New("user is already a participant")
)

// ChatRepository persists chats, memberships and messages.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *domain.Chat, participants []domain.Participant) error
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)

	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	ListParticipantIDs(ctx context.Context, chatID string) ([]string, error)
	AddParticipant(ctx context.Context, p *domain.Participant) error

	// CreateMessage appends msg. Messages are never updated afterwards.
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)
	// TouchLastMessageAt moves chats.last_message_at forward, never backward.
	TouchLastMessageAt(ctx context.Context, chatID string, at time.Time) error
	MarkRead(ctx context.Context, userID, messageID string) error
	MarkReadUpTo(ctx context.Context, chatID, userID, messageID string) (int64, error)
	// ListMessages returns up to limit messages older than beforeID in chronological order.
	ListMessages(ctx context.Context, chatID, beforeID string, limit int) ([]domain.Message, error)
	// RecentMessagesForUser returns the newest messages across the user's chats, newest first.
	RecentMessagesForUser(ctx context.Context, userID string, limit int) ([]domain.Message, error)

	GetUsers(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

// InvitationRepository persists invitations. Every transition is a
// conditional update on status = PENDING, so each invitation changes state
// at most once no matter how many callers race.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, id string) (*domain.Invitation, error)
	// AcceptInvitation marks the invitation ACCEPTED and inserts the invitee
	// as MEMBER in one transaction.
	AcceptInvitation(ctx context.Context, id string, now time.Time) (*domain.Invitation, error)
	DeclineInvitation(ctx context.Context, id string, now time.Time) (*domain.Invitation, error)
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
	ListPendingForUser(ctx context.Context, userID string, now time.Time) ([]domain.Invitation, error)
}
