package service

import (
	"context"
	"fmt"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/audit"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

type chatService struct {
	hub         *hub.Hub
	registry    registry.Registry
	auth        *MembershipAuthority
	pipeline    *MessagePipeline
	invitations *InvitationService
	typing      *TypingBroadcaster
}

func NewChatService(
	h *hub.Hub,
	reg registry.Registry,
	auth *MembershipAuthority,
	pipeline *MessagePipeline,
	invitations *InvitationService,
	typing *TypingBroadcaster,
) ChatService {
	return &chatService{
		hub:         h,
		registry:    reg,
		auth:        auth,
		pipeline:    pipeline,
		invitations: invitations,
		typing:      typing,
	}
}

// HandleConnect registers an authenticated client. A previous connection
// of the same user is told why and closed.
func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client) {
	s.hub.Register(c)

	displaced := s.registry.Register(ctx, c.UserID(), c)
	if displaced != nil && displaced.ID() != c.ID() {
		displaced.SendEvent(&domain.ErrorEvent{
			Code:    domain.ErrCodeSessionReplaced,
			Message: "Signed in from another connection",
		})
		displaced.Close()
		audit.LogWithDetail(ctx, audit.ActionSessionReplaced, c.UserID(), displaced.ID(), "previous session replaced")
	}

	audit.Log(ctx, audit.ActionConnect, c.UserID(), "client connected")
}

func (s *chatService) HandleJoinRoom(ctx context.Context, c *hub.Client, cmd *domain.JoinRoomCommand) error {
	if err := s.auth.AuthorizeJoin(ctx, c.UserID(), cmd.ChatID); err != nil {
		audit.LogTarget(ctx, audit.ActionJoinDenied, c.UserID(), cmd.ChatID, "join refused")
		return err
	}

	s.hub.JoinRoom(c, cmd.ChatID)
	audit.LogTarget(ctx, audit.ActionJoinRoom, c.UserID(), cmd.ChatID, "joined room")

	return c.SendEvent(&domain.RoomJoinedEvent{ChatID: cmd.ChatID})
}

func (s *chatService) HandleLeaveRoom(ctx context.Context, c *hub.Client, cmd *domain.LeaveRoomCommand) error {
	if !s.hub.LeaveRoom(c, cmd.ChatID) {
		return nil
	}
	s.typing.ClearConnection(c.UserID(), c.ID(), cmd.ChatID)
	audit.LogTarget(ctx, audit.ActionLeaveRoom, c.UserID(), cmd.ChatID, "left room")

	return c.SendEvent(&domain.RoomLeftEvent{ChatID: cmd.ChatID})
}

func (s *chatService) HandleSendMessage(ctx context.Context, c *hub.Client, cmd *domain.SendMessageCommand) error {
	if !c.AllowSend() {
		return fmt.Errorf("%w: slow down", domain.ErrRateLimited)
	}

	_, err := s.pipeline.Send(ctx, SendRequest{
		ChatID:          cmd.ChatID,
		SenderID:        c.UserID(),
		Content:         cmd.Content,
		Type:            cmd.Type,
		ClientMessageID: cmd.ClientMessageID,
	})
	if err != nil {
		return err
	}

	s.typing.ClearConnection(c.UserID(), c.ID(), cmd.ChatID)
	return nil
}

func (s *chatService) HandleRespondInvitation(ctx context.Context, c *hub.Client, cmd *domain.RespondInvitationCommand) error {
	_, err := s.invitations.Respond(ctx, cmd.InvitationID, c.UserID(), cmd.Response)
	return err
}

// HandleTyping relays typing state to a room the client has joined.
func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, chatID string, typing bool) error {
	if !s.hub.InRoom(c, chatID) {
		return fmt.Errorf("%w: join the room first", domain.ErrAuthorization)
	}

	if typing {
		s.typing.Start(chatID, c.UserID(), c.Session.Identity.DisplayName, c.ID())
	} else {
		s.typing.Stop(chatID, c.UserID())
	}
	return nil
}

// HandleDisconnect runs once the read pump exits.
func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	s.typing.ClearConnection(c.UserID(), c.ID(), c.Session.Rooms()...)

	if s.registry.Remove(ctx, c.UserID(), c) {
		audit.Log(ctx, audit.ActionDisconnect, c.UserID(), "client disconnected")
	}
}

func (s *chatService) Start(ctx context.Context) error {
	go s.hub.Run()
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

func (s *chatService) Stop() error {
	s.hub.Stop()
	return nil
}
