package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/service"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/middleware"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/response"
)

// Handler handles HTTP requests for chat service.
type Handler struct {
	queries        *service.QueryService
	pipeline       *service.MessagePipeline
	invitations    *service.InvitationService
	sessions       *service.SessionService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	queries *service.QueryService,
	pipeline *service.MessagePipeline,
	invitations *service.InvitationService,
	sessions *service.SessionService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		queries:        queries,
		pipeline:       pipeline,
		invitations:    invitations,
		sessions:       sessions,
		authMiddleware: authMiddleware,
	}
}

type createChatRequest struct {
	Type      domain.ChatType `json:"type" binding:"required"`
	Name      string          `json:"name"`
	MemberIDs []string        `json:"memberIds"`
}

type sendMessageRequest struct {
	Content         string             `json:"content" binding:"required"`
	Type            domain.MessageType `json:"type"`
	ClientMessageID string             `json:"clientMessageId"`
}

type markReadRequest struct {
	MessageID string `json:"messageId" binding:"required"`
}

type createInvitationRequest struct {
	InviteeID  string `json:"inviteeId" binding:"required"`
	Message    string `json:"message"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

type respondInvitationRequest struct {
	Response domain.InvitationStatus `json:"response" binding:"required"`
}

// RegisterRoutes registers all routes. Everything requires a bearer token.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware.RequireAuth())
	{
		chats := api.Group("/chats")
		{
			chats.POST("", h.CreateChat)
			chats.GET("", h.ListChats)
			chats.GET("/messages/recent", h.RecentMessages)
			chats.GET("/:id/messages", h.History)
			chats.POST("/:id/messages", h.SendMessage)
			chats.POST("/:id/read", h.MarkRead)
			chats.POST("/:id/invitations", h.CreateInvitation)
		}

		invitations := api.Group("/invitations")
		{
			invitations.GET("", h.ListInvitations)
			invitations.POST("/:id/respond", h.RespondInvitation)
		}

		api.POST("/sessions/logout", h.Logout)
	}
}

// RecentMessages is the catch-up endpoint polled by notification clients.
func (h *Handler) RecentMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.queries.RecentMessages(ctx, userID, limit)
	if err != nil {
		writeError(c, err, "failed to load recent messages")
		return
	}

	response.Success(c, gin.H{"messages": msgs})
}

// History returns a page of one chat in chronological order.
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.queries.History(ctx, userID, c.Param("id"), c.Query("before"), limit)
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}

	response.Success(c, gin.H{"messages": msgs})
}

// SendMessage is the REST twin of the websocket sendMessage command.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.pipeline.Send(ctx, service.SendRequest{
		ChatID:          c.Param("id"),
		SenderID:        middleware.GetUserID(c),
		Content:         req.Content,
		Type:            req.Type,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}

	response.Created(c, msg)
}

func (h *Handler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	chat, err := h.queries.CreateChat(ctx, service.CreateChatRequest{
		CreatorID: middleware.GetUserID(c),
		Type:      req.Type,
		Name:      req.Name,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		writeError(c, err, "failed to create chat")
		return
	}

	response.Created(c, chat.ToPayload())
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.queries.ListChats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to list chats")
		return
	}

	response.Success(c, gin.H{"chats": chats})
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	n, err := h.queries.MarkRead(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req.MessageID)
	if err != nil {
		writeError(c, err, "failed to mark messages read")
		return
	}

	response.Success(c, gin.H{"marked": n})
}

func (h *Handler) CreateInvitation(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invitations.Create(c.Request.Context(), service.CreateInvitationRequest{
		ChatID:    c.Param("id"),
		InviterID: middleware.GetUserID(c),
		InviteeID: req.InviteeID,
		Message:   req.Message,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(c, err, "failed to create invitation")
		return
	}

	response.Created(c, inv.ToPayload())
}

func (h *Handler) RespondInvitation(c *gin.Context) {
	var req respondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invitations.Respond(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Response)
	if err != nil {
		writeError(c, err, "failed to respond to invitation")
		return
	}

	response.Success(c, inv.ToPayload())
}

func (h *Handler) ListInvitations(c *gin.Context) {
	invs, err := h.invitations.ListPending(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to list invitations")
		return
	}

	response.Success(c, gin.H{
		"invitations": lo.Map(invs, func(inv domain.Invitation, _ int) domain.InvitationPayload {
			return inv.ToPayload()
		}),
	})
}

// Logout revokes the caller's tokens and drops their websocket.
func (h *Handler) Logout(c *gin.Context) {
	closed := h.sessions.Logout(c.Request.Context(), middleware.GetUserID(c))
	response.Success(c, gin.H{"connectionClosed": closed})
}

// writeError maps the domain taxonomy onto the response envelope.
func writeError(c *gin.Context, err error, fallback string) {
	l := log.Ctx(c.Request.Context())

	switch code := domain.ErrorCode(err); code {
	case domain.ErrCodeUnauthenticated:
		response.Unauthorized(c, err.Error())
	case domain.ErrCodeForbidden:
		response.Forbidden(c, err.Error())
	case domain.ErrCodeInvalidState:
		response.Error(c, http.StatusConflict, code, err.Error())
	case domain.ErrCodeBadRequest:
		response.BadRequest(c, err.Error())
	case domain.ErrCodeNotFound:
		response.NotFound(c, err.Error())
	case domain.ErrCodeConflict:
		response.Conflict(c, err.Error())
	case domain.ErrCodeRateLimited:
		response.TooManyRequests(c, err.Error())
	case domain.ErrCodeUnavailable:
		l.Error().Err(err).Msg(fallback)
		response.ServiceUnavailable(c, fallback)
	default:
		l.Error().Err(err).Msg(fallback)
		response.InternalError(c, fallback)
	}
}
