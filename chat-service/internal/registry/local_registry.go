package registry

import (
	"context"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// LocalRegistry keeps the user -> connection map of this process.
type LocalRegistry struct {
	conns  cmap.ConcurrentMap[string, Conn]
	mirror Mirror
}

// NewLocalRegistry creates a registry. mirror may be nil.
func NewLocalRegistry(mirror Mirror) *LocalRegistry {
	return &LocalRegistry{
		conns:  cmap.New[Conn](),
		mirror: mirror,
	}
}

func (r *LocalRegistry) Register(ctx context.Context, userID string, conn Conn) Conn {
	var previous Conn
	r.conns.Upsert(userID, conn, func(exist bool, inMap Conn, newValue Conn) Conn {
		if exist && inMap.ID() != newValue.ID() {
			previous = inMap
		}
		return newValue
	})

	if r.mirror != nil {
		if err := r.mirror.MarkOnline(ctx, userID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to mirror connection")
		}
	}
	return previous
}

func (r *LocalRegistry) Lookup(userID string) (Conn, bool) {
	return r.conns.Get(userID)
}

func (r *LocalRegistry) Remove(ctx context.Context, userID string, conn Conn) bool {
	removed := r.conns.RemoveCb(userID, func(_ string, inMap Conn, exists bool) bool {
		return exists && inMap.ID() == conn.ID()
	})

	if removed && r.mirror != nil {
		if err := r.mirror.MarkOffline(ctx, userID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to clear mirrored connection")
		}
	}
	return removed
}

func (r *LocalRegistry) Count() int {
	return r.conns.Count()
}
