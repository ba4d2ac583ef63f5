package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/audit"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/cache"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/idgen"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/kafka"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/metrics"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// MessagePipeline authorizes, persists and then broadcasts chat messages.
// Nothing becomes visible to other users unless the insert succeeded.
type MessagePipeline struct {
	repo      repository.ChatRepository
	auth      *MembershipAuthority
	rooms     Broadcaster
	ids       idgen.Generator
	publisher kafka.MessagePublisher
	cache     cache.MessageCache
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewMessagePipeline wires the pipeline. publisher and msgCache may be nil.
func NewMessagePipeline(
	repo repository.ChatRepository,
	auth *MembershipAuthority,
	rooms Broadcaster,
	ids idgen.Generator,
	publisher kafka.MessagePublisher,
	msgCache cache.MessageCache,
	m *metrics.Metrics,
) *MessagePipeline {
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	return &MessagePipeline{
		repo:      repo,
		auth:      auth,
		rooms:     rooms,
		ids:       ids,
		publisher: publisher,
		cache:     msgCache,
		metrics:   m,
		now:       time.Now,
	}
}

// Send runs one message through the pipeline and returns its wire payload.
// Failures after the insert are logged and never surface to the caller: the
// message exists and peers that missed the broadcast catch up by polling.
func (p *MessagePipeline) Send(ctx context.Context, req SendRequest) (*domain.MessagePayload, error) {
	timer := p.metrics.SendTimer()
	defer timer.ObserveDuration()

	if err := domain.ValidateContent(req.Content, req.Type); err != nil {
		return nil, err
	}

	if err := p.auth.AuthorizeSend(ctx, req.SenderID, req.ChatID); err != nil {
		return nil, err
	}

	msgType := req.Type
	if msgType == "" {
		chat, err := p.repo.GetChat(ctx, req.ChatID)
		if err != nil {
			if errors.Is(err, repository.ErrChatNotFound) {
				return nil, fmt.Errorf("%w: chat %s", domain.ErrNotFound, req.ChatID)
			}
			return nil, fmt.Errorf("%w: load chat: %v", domain.ErrTransientIO, err)
		}
		msgType = domain.DefaultMessageType(chat.Type)
	}

	id, err := p.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %v", domain.ErrTransientIO, err)
	}

	msg := &domain.Message{
		ID:        id,
		ChatID:    req.ChatID,
		SenderID:  req.SenderID,
		Content:   req.Content,
		Type:      msgType,
		CreatedAt: p.now().UTC().Truncate(time.Microsecond),
	}
	if err := p.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: persist message: %v", domain.ErrTransientIO, err)
	}

	l := log.Ctx(ctx).With().
		Str(log.FieldChatID, msg.ChatID).
		Str(log.FieldMessageID, msg.ID).
		Logger()

	var sender *domain.User
	if users, err := p.repo.GetUsers(ctx, []string{msg.SenderID}); err != nil {
		l.Warn().Err(err).Msg("failed to load sender profile")
	} else {
		sender = users[msg.SenderID]
	}

	payload := msg.ToPayload(sender)
	ev := &domain.MessageEvent{MessagePayload: payload, ClientMessageID: req.ClientMessageID}
	if err := p.rooms.BroadcastToRoom(msg.ChatID, ev, ""); err != nil {
		l.Warn().Err(err).Msg("broadcast failed")
	}

	if err := p.repo.TouchLastMessageAt(ctx, msg.ChatID, msg.CreatedAt); err != nil {
		l.Error().Err(err).Msg("failed to advance last message time")
	}
	if err := p.repo.MarkRead(ctx, msg.SenderID, msg.ID); err != nil {
		l.Error().Err(err).Msg("failed to mark message read for sender")
	}

	if err := p.publisher.PublishMessage(ctx, msg); err != nil {
		l.Error().Err(err).Msg("failed to publish message event")
	}
	p.invalidateRecent(ctx, msg.ChatID)

	p.metrics.MessageSent(string(msg.Type))
	audit.LogTarget(ctx, audit.ActionSendMessage, msg.SenderID, msg.ChatID, "message sent")

	return &payload, nil
}

// invalidateRecent retires cached recent windows for every participant.
func (p *MessagePipeline) invalidateRecent(ctx context.Context, chatID string) {
	if p.cache == nil {
		return
	}

	l := log.Ctx(ctx)
	ids, err := p.repo.ListParticipantIDs(ctx, chatID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldChatID, chatID).Msg("failed to list participants for cache invalidation")
		return
	}

	if err := p.cache.Invalidate(ctx, ids...); err != nil {
		l.Warn().Err(err).Str(log.FieldChatID, chatID).Msg("failed to invalidate recent cache")
	}
}
