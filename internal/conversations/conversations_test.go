package conversations

import (
	"context"
	"testing"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Principal{UserID: "alice"}
	bob   = models.Principal{UserID: "bob"}
)

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	store := memory.New()
	store.AddProfile(models.Profile{ID: "alice", FullName: "Alice Moreno"})
	store.AddProfile(models.Profile{ID: "bob", FullName: "Bob Stone", IsOnline: true})
	store.AddProfile(models.Profile{ID: "carol", FullName: ""})
	return store, NewService(store.Conversations(), store.Profiles(), store.Messages())
}

func TestResolve_CreatesOnceAndReuses(t *testing.T) {
	ctx := context.Background()
	store, svc := newFixture(t)

	first, err := svc.Resolve(ctx, alice, "bob")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	again, err := svc.Resolve(ctx, alice, "bob")
	require.NoError(t, err)
	fromPeer, err := svc.Resolve(ctx, bob, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, first, fromPeer)
	assert.Equal(t, 1, store.CountConversations())
	assert.Equal(t, 2, store.CountParticipants())
}

func TestResolve_ReusesConversationWithoutPairIndex(t *testing.T) {
	store, svc := newFixture(t)
	store.AddDirectConversation("legacy", "alice", "bob", time.Now())

	id, err := svc.Resolve(context.Background(), alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, "legacy", id)
	assert.Equal(t, 1, store.CountConversations())
}

func TestResolve_IgnoresGroupsWithTarget(t *testing.T) {
	ctx := context.Background()
	store, svc := newFixture(t)
	group, err := svc.CreateGroup(ctx, alice, "Class of 2015", []string{"bob"})
	require.NoError(t, err)

	id, err := svc.Resolve(ctx, alice, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, group.ID, id)
	assert.Equal(t, 2, store.CountConversations())
}

func TestResolve_ConcurrentPeerWins(t *testing.T) {
	ctx := context.Background()
	store, svc := newFixture(t)

	var peerID string
	raced := false
	store.BeforeCreateDirect = func(creatorID, targetID string) {
		if raced {
			return
		}
		raced = true
		id, err := svc.Resolve(ctx, bob, "alice")
		require.NoError(t, err)
		peerID = id
	}

	id, err := svc.Resolve(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, peerID, id)
	assert.Equal(t, 1, store.CountConversations())
	assert.Equal(t, 2, store.CountParticipants())
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		p       models.Principal
		target  string
		setup   func(store *memory.Store)
		wantErr error
	}{
		{name: "no session", p: models.Principal{}, target: "bob", wantErr: apperr.ErrAuthRequired},
		{name: "blank target", p: alice, target: " ", wantErr: apperr.ErrValidation},
		{name: "self", p: alice, target: "alice", wantErr: apperr.ErrValidation},
		{name: "unknown target", p: alice, target: "zed", wantErr: apperr.ErrNotFound},
		{
			name: "insert fails", p: alice, target: "bob",
			setup:   func(store *memory.Store) { store.FailOn("conversations.CreateDirect", assert.AnError) },
			wantErr: apperr.ErrConversationCreationFailed,
		},
		{
			name: "membership scan fails", p: alice, target: "bob",
			setup:   func(store *memory.Store) { store.FailOn("conversations.ListDirectMemberships", assert.AnError) },
			wantErr: apperr.ErrConversationCreationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newFixture(t)
			if tt.setup != nil {
				tt.setup(store)
			}
			id, err := svc.Resolve(context.Background(), tt.p, tt.target)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)
			assert.Equal(t, 0, store.CountConversations())
		})
	}
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		group   string
		members []string
		wantErr error
	}{
		{name: "success", group: "Mentors", members: []string{"bob", "carol", "bob", "alice"}},
		{name: "blank name", group: "  ", members: []string{"bob"}, wantErr: apperr.ErrValidation},
		{name: "only self", group: "Solo", members: []string{"alice"}, wantErr: apperr.ErrValidation},
		{name: "unknown member", group: "Ghosts", members: []string{"bob", "zed"}, wantErr: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newFixture(t)
			conv, err := svc.CreateGroup(ctx, alice, tt.group, tt.members)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, store.CountConversations())
				return
			}
			require.NoError(t, err)
			assert.True(t, conv.IsGroup)
			assert.Equal(t, 3, store.CountParticipants())
			ok, err := svc.IsParticipant(ctx, models.Principal{UserID: "carol"}, conv.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestListContacts(t *testing.T) {
	ctx := context.Background()
	store, svc := newFixture(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	withBob, err := svc.Resolve(ctx, alice, "bob")
	require.NoError(t, err)
	withCarol, err := svc.Resolve(ctx, alice, "carol")
	require.NoError(t, err)

	messages := store.Messages()
	require.NoError(t, messages.Create(ctx, &models.Message{ConversationID: withBob, SenderID: "bob", Content: "hi alice", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, messages.Create(ctx, &models.Message{ConversationID: withBob, SenderID: "alice", Content: "hey bob", CreatedAt: base.Add(2 * time.Minute)}))

	contacts, err := svc.ListContacts(ctx, alice)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, models.Contact{
		ID:             "bob",
		ConversationID: withBob,
		Name:           "Bob Stone",
		Status:         models.StatusOnline,
		LastMessage:    "hey bob",
		Timestamp:      timePtr(base.Add(2 * time.Minute)),
		Unread:         1,
	}, contacts[0])

	assert.Equal(t, "carol", contacts[1].ID)
	assert.Equal(t, withCarol, contacts[1].ConversationID)
	assert.Equal(t, "Unknown User", contacts[1].Name)
	assert.Equal(t, "No messages yet", contacts[1].LastMessage)
	assert.Nil(t, contacts[1].Timestamp)
	assert.Equal(t, models.StatusOffline, contacts[1].Status)
}

func TestListContacts_GroupName(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)
	_, err := svc.CreateGroup(ctx, alice, "Class of 2015", []string{"bob", "carol"})
	require.NoError(t, err)

	contacts, err := svc.ListContacts(ctx, bob)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.True(t, contacts[0].IsGroup)
	assert.Equal(t, "Class of 2015", contacts[0].Name)
}

func TestListContacts_BackendFailure(t *testing.T) {
	store, svc := newFixture(t)
	store.FailOn("messages.LastByConversations", assert.AnError)
	_, err := svc.Resolve(context.Background(), alice, "bob")
	require.NoError(t, err)

	_, err = svc.ListContacts(context.Background(), alice)
	assert.ErrorIs(t, err, apperr.ErrBackend)
}

func timePtr(t time.Time) *time.Time { return &t }
