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
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/metrics"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// InvitationService drives the PENDING -> ACCEPTED | DECLINED | EXPIRED
// state machine. Transitions are enforced by the store; this layer maps
// outcomes to errors and notifies whoever is online.
type InvitationService struct {
	chats       repository.ChatRepository
	invitations repository.InvitationRepository
	auth        *MembershipAuthority
	registry    registry.Registry
	ids         idgen.Generator
	cache       cache.MessageCache
	defaultTTL  time.Duration
	maxTTL      time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewInvitationService(
	chats repository.ChatRepository,
	invitations repository.InvitationRepository,
	auth *MembershipAuthority,
	reg registry.Registry,
	ids idgen.Generator,
	msgCache cache.MessageCache,
	defaultTTL, maxTTL time.Duration,
	m *metrics.Metrics,
) *InvitationService {
	return &InvitationService{
		chats:       chats,
		invitations: invitations,
		auth:        auth,
		registry:    reg,
		ids:         ids,
		cache:       msgCache,
		defaultTTL:  defaultTTL,
		maxTTL:      maxTTL,
		metrics:     m,
		now:         time.Now,
	}
}

// Create stores a PENDING invitation and tells the invitee if connected.
func (s *InvitationService) Create(ctx context.Context, req CreateInvitationRequest) (*domain.Invitation, error) {
	if req.InviteeID == "" || req.ChatID == "" {
		return nil, fmt.Errorf("%w: chatId and inviteeId are required", domain.ErrValidation)
	}
	if req.InviteeID == req.InviterID {
		return nil, fmt.Errorf("%w: cannot invite yourself", domain.ErrValidation)
	}

	if err := s.auth.AuthorizeJoin(ctx, req.InviterID, req.ChatID); err != nil {
		return nil, err
	}

	member, err := s.chats.IsParticipant(ctx, req.ChatID, req.InviteeID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership check: %v", domain.ErrTransientIO, err)
	}
	if member {
		return nil, fmt.Errorf("%w: user is already a participant", domain.ErrConflict)
	}

	users, err := s.chats.GetUsers(ctx, []string{req.InviteeID})
	if err != nil {
		return nil, fmt.Errorf("%w: load invitee: %v", domain.ErrTransientIO, err)
	}
	if _, ok := users[req.InviteeID]; !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, req.InviteeID)
	}

	id, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %v", domain.ErrTransientIO, err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	inv := &domain.Invitation{
		ID:        id,
		ChatID:    req.ChatID,
		InviterID: req.InviterID,
		InviteeID: req.InviteeID,
		Status:    domain.InvitationPending,
		Message:   req.Message,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl(req.TTL)),
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w: persist invitation: %v", domain.ErrTransientIO, err)
	}

	s.metrics.InvitationTransition(string(domain.InvitationPending))
	audit.LogTarget(ctx, audit.ActionInvite, req.InviterID, inv.ID, "invitation created")

	s.unicast(ctx, inv.InviteeID, &domain.InvitationReceivedEvent{Invitation: inv.ToPayload()})
	return inv, nil
}

func (s *InvitationService) ttl(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.defaultTTL
	}
	if s.maxTTL > 0 && requested > s.maxTTL {
		return s.maxTTL
	}
	return requested
}

// Respond answers an invitation on behalf of its invitee. A second answer,
// or an answer after expiry, fails with ErrInvalidState and changes nothing.
func (s *InvitationService) Respond(ctx context.Context, invitationID, responderID string, response domain.InvitationStatus) (*domain.Invitation, error) {
	if err := domain.ValidateResponse(response); err != nil {
		return nil, err
	}

	inv, err := s.invitations.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if inv.InviteeID != responderID {
		return nil, fmt.Errorf("%w: invitation belongs to another user", domain.ErrAuthorization)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if response == domain.InvitationAccepted {
		inv, err = s.invitations.AcceptInvitation(ctx, invitationID, now)
	} else {
		inv, err = s.invitations.DeclineInvitation(ctx, invitationID, now)
	}
	if err != nil {
		return nil, s.mapError(err)
	}

	if inv.Status == domain.InvitationAccepted && s.cache != nil {
		// The invitee's recent window now spans the new chat.
		if err := s.cache.Invalidate(ctx, inv.InviteeID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldUserID, inv.InviteeID).Msg("failed to invalidate recent cache")
		}
	}

	s.metrics.InvitationTransition(string(inv.Status))
	audit.LogTarget(ctx, audit.ActionInvitationRespond, responderID, inv.ID, string(inv.Status))

	s.unicast(ctx, inv.InviterID, &domain.InvitationResponseEvent{
		InvitationID: inv.ID,
		ChatID:       inv.ChatID,
		InviteeID:    inv.InviteeID,
		Status:       inv.Status,
	})
	return inv, nil
}

// Sweep expires every lapsed PENDING invitation.
func (s *InvitationService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.invitations.ExpireInvitations(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: expire invitations: %v", domain.ErrTransientIO, err)
	}
	if n > 0 {
		s.metrics.InvitationsSwept(n)
		audit.LogWithDetail(ctx, audit.ActionInvitationSweep, "system", fmt.Sprintf("expired=%d", n), "invitations expired")
	}
	return n, nil
}

// ListPending returns invitations the user can still answer.
func (s *InvitationService) ListPending(ctx context.Context, userID string) ([]domain.Invitation, error) {
	invs, err := s.invitations.ListPendingForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: list invitations: %v", domain.ErrTransientIO, err)
	}
	return invs, nil
}

// unicast delivers ev to userID if connected. Offline users see the
// outcome next time they list chats or invitations.
func (s *InvitationService) unicast(ctx context.Context, userID string, ev domain.Event) {
	conn, ok := s.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := conn.SendEvent(ev); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldUserID, userID).Str(log.FieldEvent, ev.EventType()).Msg("unicast dropped")
	}
}

func (s *InvitationService) mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvitationNotFound):
		return fmt.Errorf("%w: invitation", domain.ErrNotFound)
	case errors.Is(err, repository.ErrInvitationNotPending):
		return domain.ErrInvalidState
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransientIO, err)
	}
}
