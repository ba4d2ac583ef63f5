package service

import (
	"context"
	"fmt"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
)

// MembershipAuthority answers whether a user may see or write to a chat.
// The persisted participant row is the only source of truth; nothing is
// cached between calls.
type MembershipAuthority struct {
	repo repository.ChatRepository
}

func NewMembershipAuthority(repo repository.ChatRepository) *MembershipAuthority {
	return &MembershipAuthority{repo: repo}
}

// AuthorizeJoin must succeed before a connection is added to a room.
func (a *MembershipAuthority) AuthorizeJoin(ctx context.Context, userID, chatID string) error {
	return a.authorize(ctx, userID, chatID)
}

// AuthorizeSend is re-evaluated on every send since membership can change
// after the join.
func (a *MembershipAuthority) AuthorizeSend(ctx context.Context, userID, chatID string) error {
	return a.authorize(ctx, userID, chatID)
}

func (a *MembershipAuthority) authorize(ctx context.Context, userID, chatID string) error {
	if userID == "" {
		return domain.ErrAuthentication
	}

	ok, err := a.repo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("%w: membership check: %v", domain.ErrTransientIO, err)
	}
	if !ok {
		return fmt.Errorf("%w: chat %s", domain.ErrAuthorization, chatID)
	}
	return nil
}
