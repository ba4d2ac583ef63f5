package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/testutil"
)

func TestRecentMessages_NewestFirstAcrossChats(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.repo.AddParticipant(context.Background(), &domain.Participant{ChatID: "c2", UserID: "bob", Role: domain.RoleMember}))
	testutil.SeedMessage(t, f.db, "m1", "c1", "alice", "one", base)
	testutil.SeedMessage(t, f.db, "m2", "c2", "carol", "two", base.Add(time.Second))
	testutil.SeedMessage(t, f.db, "m3", "c1", "bob", "three", base.Add(2*time.Second))

	msgs, err := f.queries.RecentMessages(context.Background(), "bob", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m3", "m2", "m1"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, "Carol", msgs[1].Sender.FirstName)

	msgs, err = f.queries.RecentMessages(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m3", msgs[0].ID)

	msgs, err = f.queries.RecentMessages(context.Background(), "eve", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistory_ParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c"} {
		_, err := f.pipeline.Send(ctx, SendRequest{ChatID: "c1", SenderID: "alice", Content: content})
		require.NoError(t, err)
	}

	_, err := f.queries.History(ctx, "eve", "c1", "", 10)
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	msgs, err := f.queries.History(ctx, "bob", "c1", "", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)

	older, err := f.queries.History(ctx, "bob", "c1", msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "a", older[0].Content)

	_, err = f.queries.History(ctx, "bob", "c1", "nope", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.queries.CreateChat(ctx, CreateChatRequest{CreatorID: "alice", Type: domain.ChatTypeIndividual, MemberIDs: []string{"bob", "carol"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.queries.CreateChat(ctx, CreateChatRequest{CreatorID: "alice", Type: "PARTY", MemberIDs: []string{"bob"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.queries.CreateChat(ctx, CreateChatRequest{CreatorID: "alice", Type: domain.ChatTypeGroup, MemberIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chat, err := f.queries.CreateChat(ctx, CreateChatRequest{
		CreatorID: "alice",
		Type:      domain.ChatTypeGroup,
		Name:      " Beach cleanup ",
		MemberIDs: []string{"bob", "carol", "alice", "bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Beach cleanup", chat.Name)

	ids, err := f.repo.ListParticipantIDs(ctx, chat.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, ids)
}

func TestListChatsAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last *domain.MessagePayload
	for _, content := range []string{"x", "y"} {
		p, err := f.pipeline.Send(ctx, SendRequest{ChatID: "c1", SenderID: "alice", Content: content})
		require.NoError(t, err)
		last = p
	}

	chats, err := f.queries.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c1", chats[0].ID)
	assert.Equal(t, int64(2), chats[0].UnreadCount)

	n, err := f.queries.MarkRead(ctx, "bob", "c1", last.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	chats, err = f.queries.ListChats(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, chats[0].UnreadCount)

	_, err = f.queries.MarkRead(ctx, "eve", "c1", last.ID)
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}
