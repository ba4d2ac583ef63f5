package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/audit"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/identity"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/metrics"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/service"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	verifier identity.Verifier
	metrics  *metrics.Metrics
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, verifier identity.Verifier, m *metrics.Metrics, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
		metrics:  m,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates before upgrading; an unauthenticated
// request never becomes a connection.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}

	ident, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		audit.LogWithDetail(r.Context(), audit.ActionAuthFailed, "", err.Error(), "websocket authentication failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New().String()
	session := domain.NewSession(connID, *ident)
	client := hub.NewClient(connID, h.hub, conn, session, h.wsCfg)

	// The connection outlives the upgrade request, so it gets its own context.
	connLogger := l.With().
		Str(log.FieldConnID, connID).
		Str(log.FieldUserID, ident.ID).
		Logger()
	ctx := log.WithLogger(context.Background(), connLogger)

	h.service.HandleConnect(ctx, client)

	go client.WritePump()
	go client.ReadPump(
		func(c *hub.Client, raw []byte) { h.handleMessage(ctx, c, raw) },
		func(c *hub.Client) { h.service.HandleDisconnect(ctx, c) },
	)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, raw []byte) {
	cmd, err := domain.DecodeCommand(raw)
	if err != nil {
		h.reject(ctx, client, "", err, nil)
		return
	}

	switch c := cmd.(type) {
	case *domain.JoinRoomCommand:
		if err := h.service.HandleJoinRoom(ctx, client, c); err != nil {
			h.reject(ctx, client, c.CommandType(), err, &domain.ErrorEvent{ChatID: c.ChatID})
		}

	case *domain.LeaveRoomCommand:
		if err := h.service.HandleLeaveRoom(ctx, client, c); err != nil {
			h.reject(ctx, client, c.CommandType(), err, &domain.ErrorEvent{ChatID: c.ChatID})
		}

	case *domain.SendMessageCommand:
		if err := h.service.HandleSendMessage(ctx, client, c); err != nil {
			h.reject(ctx, client, c.CommandType(), err, &domain.ErrorEvent{
				ChatID:          c.ChatID,
				ClientMessageID: c.ClientMessageID,
				Content:         c.Content,
			})
		}

	case *domain.RespondInvitationCommand:
		if err := h.service.HandleRespondInvitation(ctx, client, c); err != nil {
			h.reject(ctx, client, c.CommandType(), err, nil)
		}

	case *domain.TypingStartCommand:
		if err := h.service.HandleTyping(ctx, client, c.ChatID, true); err != nil {
			h.reject(ctx, client, c.CommandType(), err, &domain.ErrorEvent{ChatID: c.ChatID})
		}

	case *domain.TypingStopCommand:
		if err := h.service.HandleTyping(ctx, client, c.ChatID, false); err != nil {
			h.reject(ctx, client, c.CommandType(), err, &domain.ErrorEvent{ChatID: c.ChatID})
		}

	case *domain.PingCommand:
		client.SendEvent(&domain.PongEvent{})
	}
}

// reject sends one error event to the originating connection only.
func (h *WSHandler) reject(ctx context.Context, client *hub.Client, command string, err error, ev *domain.ErrorEvent) {
	if ev == nil {
		ev = &domain.ErrorEvent{}
	}
	ev.Code = domain.ErrorCode(err)
	ev.Message = clientMessage(err)
	ev.Command = command

	h.metrics.CommandError(command, ev.Code)

	l := log.Ctx(ctx)
	evt := l.Warn()
	if ev.Code == domain.ErrCodeInternalError || ev.Code == domain.ErrCodeUnavailable {
		evt = l.Error()
	}
	evt.Err(err).Str(log.FieldEvent, command).Str("code", ev.Code).Msg("command failed")

	if sendErr := client.SendEvent(ev); sendErr != nil && !errors.Is(sendErr, hub.ErrClientClosed) {
		l.Debug().Err(sendErr).Msg("failed to deliver error event")
	}
}

// clientMessage hides store details from clients.
func clientMessage(err error) string {
	switch domain.ErrorCode(err) {
	case domain.ErrCodeUnavailable:
		return "temporarily unavailable, try again"
	case domain.ErrCodeInternalError:
		return "internal error"
	}
	return err.Error()
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat/ws", h.HandleWebSocket).Methods(http.MethodGet)
}
