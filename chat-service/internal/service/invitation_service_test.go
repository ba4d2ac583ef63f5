package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

func TestInvitationCreate_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateInvitationRequest
		want error
	}{
		{"inviter not participant", CreateInvitationRequest{ChatID: "c1", InviterID: "eve", InviteeID: "carol"}, domain.ErrAuthorization},
		{"invitee already member", CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "bob"}, domain.ErrConflict},
		{"self invite", CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "alice"}, domain.ErrValidation},
		{"unknown invitee", CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "ghost"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.invitations.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvitationCreate_TTLAndUnicast(t *testing.T) {
	f := newFixture(t)
	carol := f.connect(t, "cc", "carol")

	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.invitations.now = func() time.Time { return fixed }

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol", Message: "join us"})
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, inv.Status)
	assert.Equal(t, fixed.Add(time.Hour), inv.ExpiresAt)

	ev := next(t, carol)
	assert.Equal(t, domain.EventInvitationReceived, ev.Type)
	assert.Equal(t, inv.ID, ev.Data["invitation"].(map[string]interface{})["id"])

	capped, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "bob", InviteeID: "eve", TTL: 90 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(24*time.Hour), capped.ExpiresAt)
}

func TestInvitationRespond_AcceptAddsMemberAndNotifiesInviter(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "ca", "alice")

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol"})
	require.NoError(t, err)

	got, err := f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, got.Status)

	ok, err := f.repo.IsParticipant(t.Context(), "c1", "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	ev := next(t, alice)
	assert.Equal(t, domain.EventInvitationAccepted, ev.Type)
	assert.Equal(t, "carol", ev.Data["inviteeId"])

	// Carol can now join the room.
	require.NoError(t, f.auth.AuthorizeJoin(t.Context(), "carol", "c1"))
}

func TestInvitationRespond_DoubleSubmitHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "ca", "alice")

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol"})
	require.NoError(t, err)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.EventInvitationAccepted, next(t, alice).Type)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	silent(t, alice)
}

func TestInvitationRespond_DeclineThenAccept(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "ca", "alice")

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol"})
	require.NoError(t, err)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationDeclined)
	require.NoError(t, err)
	assert.Equal(t, domain.EventInvitationDeclined, next(t, alice).Type)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	ok, err := f.repo.IsParticipant(t.Context(), "c1", "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvitationRespond_ExpiredAndForeign(t *testing.T) {
	f := newFixture(t)
	created := time.Now().UTC()
	f.invitations.now = func() time.Time { return created }

	inv, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: "carol", TTL: time.Minute})
	require.NoError(t, err)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "eve", domain.InvitationAccepted)
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", "MAYBE")
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.invitations.now = func() time.Time { return created.Add(time.Minute) }
	_, err = f.invitations.Respond(t.Context(), inv.ID, "carol", domain.InvitationAccepted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.invitations.Respond(t.Context(), "missing", "carol", domain.InvitationAccepted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvitationSweep_ConcurrentAndIdempotent(t *testing.T) {
	f := newFixture(t)
	created := time.Now().UTC()
	f.invitations.now = func() time.Time { return created }

	for _, invitee := range []string{"carol", "eve"} {
		_, err := f.invitations.Create(t.Context(), CreateInvitationRequest{ChatID: "c1", InviterID: "alice", InviteeID: invitee, TTL: time.Minute})
		require.NoError(t, err)
	}

	f.invitations.now = func() time.Time { return created.Add(2 * time.Minute) }

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.invitations.Sweep(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(2), total)

	pending, err := f.invitations.ListPending(t.Context(), "carol")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
