package cache

import (
	"context"
	"time"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

// RecentResult is the cached body of a user's recent-messages query.
type RecentResult struct {
	Messages []domain.MessagePayload `json:"messages"`
}

// MessageCache caches per-user recent-message windows under a per-user
// version. Readers build keys from the version they saw before querying the
// store; Invalidate bumps the version, so a window computed before the bump
// is written under a key no later reader asks for.
type MessageCache interface {
	Version(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, key string) (*RecentResult, error)
	Set(ctx context.Context, key string, result *RecentResult, ttl time.Duration) error
	Invalidate(ctx context.Context, userIDs ...string) error
	BuildRecentKey(userID string, version int64, limit int) string
	Close() error
}
