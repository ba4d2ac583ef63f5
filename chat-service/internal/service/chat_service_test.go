package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

func TestHandleConnect_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "c-old", "alice")
	second := f.connect(t, "c-new", "alice")

	ev := next(t, first)
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, domain.ErrCodeSessionReplaced, ev.Data["code"])

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced connection was not closed")
	}

	conn, ok := f.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID(), conn.ID())

	// The stale connection going away must not evict its replacement.
	f.chat.HandleDisconnect(t.Context(), first)
	conn, ok = f.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID(), conn.ID())

	f.chat.HandleDisconnect(t.Context(), second)
	_, ok = f.registry.Lookup("alice")
	assert.False(t, ok)
}

func TestHandleJoinRoom_DeniedNeverJoins(t *testing.T) {
	f := newFixture(t)
	e := f.connect(t, "ce", "eve")

	err := f.chat.HandleJoinRoom(t.Context(), e, &domain.JoinRoomCommand{ChatID: "c1"})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	assert.False(t, f.hub.InRoom(e, "c1"))
	assert.False(t, e.Session.InRoom("c1"))
	assert.Zero(t, f.hub.RoomSize("c1"))
}

func TestHandleSendMessage_MembershipRevokedAfterJoin(t *testing.T) {
	f := newFixture(t)
	b := f.connect(t, "cb", "bob")
	f.join(t, b, "c1")

	require.NoError(t, f.repo.AddParticipant(t.Context(), &domain.Participant{ChatID: "c2", UserID: "bob", Role: domain.RoleMember}))
	f.join(t, b, "c2")

	// Drop bob from c2 behind the hub's back.
	require.NoError(t, f.db.Exec("DELETE FROM chat_participants WHERE chat_id = ? AND user_id = ?", "c2", "bob").Error)

	err := f.chat.HandleSendMessage(t.Context(), b, &domain.SendMessageCommand{ChatID: "c2", Content: "still here?"})
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestHandleRespondInvitation(t *testing.T) {
	f := newFixture(t)
	carol := f.connect(t, "cc", "carol")

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, domain.EventInvitationReceived, next(t, carol).Type)

	cmd := &domain.RespondInvitationCommand{InvitationID: inv.ID, Response: domain.InvitationAccepted}
	require.NoError(t, f.chat.HandleRespondInvitation(t.Context(), carol, cmd))
	assert.ErrorIs(t, f.chat.HandleRespondInvitation(t.Context(), carol, cmd), domain.ErrInvalidState)

	f.join(t, carol, "c1")
}
