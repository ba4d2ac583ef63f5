package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/audit"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/cache"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/idgen"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// QueryService serves the REST reads plus chat creation and read receipts.
type QueryService struct {
	repo     repository.ChatRepository
	auth     *MembershipAuthority
	ids      idgen.Generator
	cache    cache.MessageCache
	cacheTTL time.Duration
	group    singleflight.Group
	now      func() time.Time
}

// NewQueryService wires the read side. msgCache may be nil.
func NewQueryService(
	repo repository.ChatRepository,
	auth *MembershipAuthority,
	ids idgen.Generator,
	msgCache cache.MessageCache,
	cacheTTL time.Duration,
) *QueryService {
	return &QueryService{
		repo:     repo,
		auth:     auth,
		ids:      ids,
		cache:    msgCache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ClampLimit bounds a client-supplied page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// RecentMessages returns the newest messages across the user's chats,
// newest first, including the user's own. The cache key carries the user's
// window version read before querying, so a window that loses a race with
// an invalidation is never served.
func (s *QueryService) RecentMessages(ctx context.Context, userID string, limit int) ([]domain.MessagePayload, error) {
	limit = ClampLimit(limit)
	l := log.Ctx(ctx)

	var (
		key     string
		version int64 = -1
	)
	if s.cache != nil {
		v, err := s.cache.Version(ctx, userID)
		if err != nil {
			l.Warn().Err(err).Msg("recent cache version read failed")
		} else {
			version = v
			key = s.cache.BuildRecentKey(userID, version, limit)
			cached, err := s.cache.Get(ctx, key)
			if err == nil {
				return cached.Messages, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				l.Warn().Err(err).Msg("recent cache read failed")
			}
		}
	}

	flightKey := fmt.Sprintf("%s:%d:%d", userID, version, limit)
	v, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		msgs, err := s.repo.RecentMessagesForUser(ctx, userID, limit)
		if err != nil {
			return nil, err
		}
		payloads, err := s.enrich(ctx, msgs)
		if err != nil {
			return nil, err
		}

		if key != "" {
			if err := s.cache.Set(ctx, key, &cache.RecentResult{Messages: payloads}, s.cacheTTL); err != nil {
				l.Warn().Err(err).Msg("recent cache write failed")
			}
		}
		return payloads, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recent messages: %v", domain.ErrTransientIO, err)
	}
	return v.([]domain.MessagePayload), nil
}

// History pages backwards through one chat. Only participants may read it.
func (s *QueryService) History(ctx context.Context, userID, chatID, beforeID string, limit int) ([]domain.MessagePayload, error) {
	if err := s.auth.AuthorizeJoin(ctx, userID, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessages(ctx, chatID, beforeID, ClampLimit(limit))
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, fmt.Errorf("%w: cursor message %s", domain.ErrNotFound, beforeID)
		}
		return nil, fmt.Errorf("%w: history: %v", domain.ErrTransientIO, err)
	}

	payloads, err := s.enrich(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", domain.ErrTransientIO, err)
	}
	return payloads, nil
}

func (s *QueryService) enrich(ctx context.Context, msgs []domain.Message) ([]domain.MessagePayload, error) {
	senderIDs := lo.Uniq(lo.Map(msgs, func(m domain.Message, _ int) string { return m.SenderID }))
	users, err := s.repo.GetUsers(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m domain.Message, _ int) domain.MessagePayload {
		return m.ToPayload(users[m.SenderID])
	}), nil
}

// ListChats returns the user's chats with unread counts.
func (s *QueryService) ListChats(ctx context.Context, userID string) ([]ChatSummary, error) {
	chats, err := s.repo.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list chats: %v", domain.ErrTransientIO, err)
	}
	unread, err := s.repo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: unread counts: %v", domain.ErrTransientIO, err)
	}

	return lo.Map(chats, func(c domain.Chat, _ int) ChatSummary {
		return ChatSummary{ChatPayload: c.ToPayload(), UnreadCount: unread[c.ID]}
	}), nil
}

// CreateChat creates a chat with the creator as ADMIN and every listed
// member as MEMBER.
func (s *QueryService) CreateChat(ctx context.Context, req CreateChatRequest) (*domain.Chat, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown chat type %q", domain.ErrValidation, req.Type)
	}

	members := lo.Without(lo.Uniq(lo.Compact(req.MemberIDs)), req.CreatorID)
	if req.Type == domain.ChatTypeIndividual && len(members) != 1 {
		return nil, fmt.Errorf("%w: an individual chat needs exactly one other member", domain.ErrValidation)
	}

	users, err := s.repo.GetUsers(ctx, append([]string{req.CreatorID}, members...))
	if err != nil {
		return nil, fmt.Errorf("%w: load members: %v", domain.ErrTransientIO, err)
	}
	if missing := lo.Filter(append([]string{req.CreatorID}, members...), func(id string, _ int) bool {
		_, ok := users[id]
		return !ok
	}); len(missing) > 0 {
		return nil, fmt.Errorf("%w: users %s", domain.ErrNotFound, strings.Join(missing, ","))
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %v", domain.ErrTransientIO, err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	chat := &domain.Chat{ID: id, Type: req.Type, Name: strings.TrimSpace(req.Name), CreatedAt: now}
	participants := []domain.Participant{{UserID: req.CreatorID, Role: domain.RoleAdmin, JoinedAt: now}}
	for _, m := range members {
		participants = append(participants, domain.Participant{UserID: m, Role: domain.RoleMember, JoinedAt: now})
	}

	if err := s.repo.CreateChat(ctx, chat, participants); err != nil {
		return nil, fmt.Errorf("%w: create chat: %v", domain.ErrTransientIO, err)
	}

	audit.LogTarget(ctx, audit.ActionCreateChat, req.CreatorID, chat.ID, "chat created")
	return chat, nil
}

// MarkRead records receipts up to messageID and returns how many were new.
func (s *QueryService) MarkRead(ctx context.Context, userID, chatID, messageID string) (int64, error) {
	if messageID == "" {
		return 0, fmt.Errorf("%w: messageId is required", domain.ErrValidation)
	}
	if err := s.auth.AuthorizeJoin(ctx, userID, chatID); err != nil {
		return 0, err
	}

	n, err := s.repo.MarkReadUpTo(ctx, chatID, userID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return 0, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
		}
		return 0, fmt.Errorf("%w: mark read: %v", domain.ErrTransientIO, err)
	}
	return n, nil
}
