package service

import (
	"context"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/audit"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
)

// TokenRevoker invalidates every token issued to a user. *jwt.Manager
// satisfies it.
type TokenRevoker interface {
	RevokeUserTokens(userID string)
}

// SessionService ends a user's chat session on logout.
type SessionService struct {
	registry registry.Registry
	revoker  TokenRevoker
}

func NewSessionService(reg registry.Registry, revoker TokenRevoker) *SessionService {
	return &SessionService{registry: reg, revoker: revoker}
}

// Logout revokes the user's tokens and closes their live connection, if
// any. The connection's own teardown removes the registry entry. Reports
// whether a connection was closed.
func (s *SessionService) Logout(ctx context.Context, userID string) bool {
	s.revoker.RevokeUserTokens(userID)

	conn, ok := s.registry.Lookup(userID)
	if ok {
		conn.SendEvent(&domain.ErrorEvent{
			Code:    domain.ErrCodeSessionEnded,
			Message: "Signed out",
		})
		conn.Close()
	}

	audit.Log(ctx, audit.ActionLogout, userID, "user signed out")
	return ok
}
