package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/jwt"
)

// Verifier resolves a bearer token into the caller's identity. A nil identity
// is never returned without an error.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// JWTVerifier verifies access tokens issued by the identity component.
type JWTVerifier struct {
	manager *jwt.Manager
}

func NewJWTVerifier(manager *jwt.Manager) *JWTVerifier {
	return &JWTVerifier{manager: manager}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrAuthentication)
	}

	claims, err := v.manager.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, fmt.Errorf("%w: token has expired", domain.ErrAuthentication)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	name := claims.DisplayName
	if name == "" {
		name = claims.Username
	}
	return &domain.Identity{
		ID:          claims.UserID,
		Role:        claims.Role,
		DisplayName: name,
	}, nil
}
