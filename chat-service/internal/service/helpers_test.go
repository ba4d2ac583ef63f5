package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/idgen"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/testutil"
)

// fixture is a full in-process chat server over in-memory sqlite:
// alice and bob share chat c1, eve belongs to nothing, carol to c2 only.
type fixture struct {
	db          *gorm.DB
	repo        *repository.GormRepository
	hub         *hub.Hub
	registry    *registry.LocalRegistry
	auth        *MembershipAuthority
	pipeline    *MessagePipeline
	invitations *InvitationService
	typing      *TypingBroadcaster
	queries     *QueryService
	chat        ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "alice", "bob", "carol", "eve")
	testutil.SeedChat(t, db, "c1", domain.ChatTypeGroup, "alice", "bob")
	testutil.SeedChat(t, db, "c2", domain.ChatTypeEvent, "carol")

	repo := repository.NewGormRepository(db)
	h := hub.NewHub(nil)
	go h.Run()
	t.Cleanup(h.Stop)

	snowflake, err := idgen.NewSnowflake(1, 1704067200000)
	require.NoError(t, err)

	reg := registry.NewLocalRegistry(nil)
	auth := NewMembershipAuthority(repo)
	pipeline := NewMessagePipeline(repo, auth, h, snowflake, nil, nil, nil)
	invitations := NewInvitationService(repo, repo, auth, reg, idgen.NewULID(), nil, time.Hour, 24*time.Hour, nil)
	typing := NewTypingBroadcaster(h, time.Minute)
	queries := NewQueryService(repo, auth, idgen.NewULID(), nil, 0)

	return &fixture{
		db:          db,
		repo:        repo,
		hub:         h,
		registry:    reg,
		auth:        auth,
		pipeline:    pipeline,
		invitations: invitations,
		typing:      typing,
		queries:     queries,
		chat:        NewChatService(h, reg, auth, pipeline, invitations, typing),
	}
}

func (f *fixture) connect(t *testing.T, connID, userID string) *hub.Client {
	t.Helper()
	session := domain.NewSession(connID, domain.Identity{ID: userID, DisplayName: userID})
	c := hub.NewClient(connID, f.hub, nil, session, config.WebSocketConfig{SendBuffer: 32})
	f.chat.HandleConnect(t.Context(), c)
	return c
}

func (f *fixture) join(t *testing.T, c *hub.Client, chatID string) {
	t.Helper()
	require.NoError(t, f.chat.HandleJoinRoom(t.Context(), c, &domain.JoinRoomCommand{ChatID: chatID}))
	require.Equal(t, domain.EventRoomJoined, next(t, c).Type)
}

type frame struct {
	Type string
	Data map[string]interface{}
}

func next(t *testing.T, c *hub.Client) frame {
	t.Helper()
	select {
	case data := <-c.Send:
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		f := frame{Type: env.Type}
		if len(env.Data) > 0 {
			require.NoError(t, json.Unmarshal(env.Data, &f.Data))
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID())
		return frame{}
	}
}

func silent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s unexpectedly received %s", c.ID(), data)
	case <-time.After(50 * time.Millisecond):
	}
}

// recordingRooms captures broadcasts instead of delivering them.
type recordingRooms struct {
	mu     sync.Mutex
	events []recorded
	hook   func(chatID string, ev domain.Event)
}

type recorded struct {
	chatID  string
	exclude string
	event   domain.Event
}

func (r *recordingRooms) BroadcastToRoom(chatID string, ev domain.Event, exclude string) error {
	if r.hook != nil {
		r.hook(chatID, ev)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{chatID: chatID, exclude: exclude, event: ev})
	return nil
}

func (r *recordingRooms) snapshot() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.events...)
}
