package connections

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"
	"alumninexus/server/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	store := memory.New()
	store.AddProfile(models.Profile{ID: "alice", FullName: "Alice Moreno"})
	store.AddProfile(models.Profile{ID: "bob", FullName: "Bob Stone", IsOnline: true})
	store.AddProfile(models.Profile{ID: "carol", FullName: "Carol Reyes"})
	return store, NewService(store.Connections(), store.Profiles())
}

var (
	alice = models.Principal{UserID: "alice"}
	bob   = models.Principal{UserID: "bob"}
	carol = models.Principal{UserID: "carol"}
)

func TestService_SendConnectionRequest(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		principal models.Principal
		recipient string
		setup     func(store *memory.Store, svc *Service)
		wantErr   error
	}{
		{name: "success", principal: alice, recipient: "bob"},
		{name: "no session", principal: models.Principal{}, recipient: "bob", wantErr: apperr.ErrAuthRequired},
		{name: "blank recipient", principal: alice, recipient: "  ", wantErr: apperr.ErrValidation},
		{name: "self", principal: alice, recipient: "alice", wantErr: apperr.ErrValidation},
		{name: "unknown recipient", principal: alice, recipient: "zed", wantErr: apperr.ErrNotFound},
		{
			name: "already requested", principal: alice, recipient: "bob",
			setup: func(_ *memory.Store, svc *Service) {
				_, err := svc.SendConnectionRequest(ctx, alice, "bob")
				require.NoError(t, err)
			},
			wantErr: apperr.ErrDuplicateRequest,
		},
		{
			name: "reverse direction already pending", principal: alice, recipient: "bob",
			setup: func(_ *memory.Store, svc *Service) {
				_, err := svc.SendConnectionRequest(ctx, bob, "alice")
				require.NoError(t, err)
			},
			wantErr: apperr.ErrDuplicateRequest,
		},
		{
			name: "backend down", principal: alice, recipient: "bob",
			setup: func(store *memory.Store, _ *Service) {
				store.FailOn("connections.Create", assert.AnError)
			},
			wantErr: apperr.ErrBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newFixture(t)
			if tt.setup != nil {
				tt.setup(store, svc)
			}
			conn, err := svc.SendConnectionRequest(ctx, tt.principal, tt.recipient)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ConnectionPending, conn.Status)
			assert.Equal(t, "alice", conn.RequesterID)
		})
	}
}

func TestService_AcceptMovesRequestToConnections(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	pending, err := svc.LoadConnectionRequests(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Alice Moreno", pending[0].Requester.FullName)

	require.NoError(t, svc.AcceptConnectionRequest(ctx, bob, req.ID))

	for _, p := range []models.Principal{alice, bob} {
		requests, err := svc.LoadConnectionRequests(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, requests, p.UserID)
	}

	aliceConns, err := svc.LoadConnections(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceConns, 1)
	assert.Equal(t, "bob", aliceConns[0].ConnectedUserID)
	assert.True(t, aliceConns[0].IsOnline)

	bobConns, err := svc.LoadConnections(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobConns, 1)
	assert.Equal(t, "alice", bobConns[0].ConnectedUserID)
}

func TestService_RejectRemovesRequestWithoutAccepting(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	require.NoError(t, svc.RejectConnectionRequest(ctx, bob, req.ID))

	requests, err := svc.LoadConnectionRequests(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, requests)

	conns, err := svc.LoadConnections(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, conns)

	// the pair may try again after a rejection
	_, err = svc.SendConnectionRequest(ctx, alice, "bob")
	assert.NoError(t, err)
}

func TestService_OnlyRecipientActsOnPendingRequest(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.AcceptConnectionRequest(ctx, alice, req.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.RejectConnectionRequest(ctx, carol, req.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.AcceptConnectionRequest(ctx, bob, "missing"), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.AcceptConnectionRequest(ctx, bob, ""), apperr.ErrValidation)

	require.NoError(t, svc.AcceptConnectionRequest(ctx, bob, req.ID))
	assert.ErrorIs(t, svc.AcceptConnectionRequest(ctx, bob, req.ID), apperr.ErrNotFound, "already accepted")
	assert.ErrorIs(t, svc.RejectConnectionRequest(ctx, bob, req.ID), apperr.ErrNotFound, "accepted rows are not rejectable")
}

func TestStore_AcceptRefreshesBothListsAndNotifies(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	sink := &notify.Recorder{}
	store := NewStore(svc, bob, sink)
	store.Refresh(ctx)
	require.Len(t, store.Requests(), 1)
	assert.Empty(t, store.Connections())

	require.NoError(t, store.AcceptConnectionRequest(ctx, req.ID))

	assert.Empty(t, store.Requests())
	require.Len(t, store.Connections(), 1)
	assert.Equal(t, "alice", store.Connections()[0].ConnectedUserID)
	assert.Contains(t, sink.Notices(), notify.Notice{Title: "Success", Description: "Connection request accepted", Variant: notify.VariantDefault})
}

func TestStore_RejectReloadsRequestsOnly(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	sink := &notify.Recorder{}
	store := NewStore(svc, bob, sink)
	store.Refresh(ctx)
	before := sink.Count(notify.EventConnectionsUpdated)

	require.NoError(t, store.RejectConnectionRequest(ctx, req.ID))
	assert.Empty(t, store.Requests())
	assert.Empty(t, store.Connections())
	assert.Equal(t, before, sink.Count(notify.EventConnectionsUpdated))
}

func TestStore_FailedLoadKeepsCachedState(t *testing.T) {
	ctx := context.Background()
	repo, svc := newFixture(t)

	req, err := svc.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	require.NoError(t, svc.AcceptConnectionRequest(ctx, bob, req.ID))

	sink := &notify.Recorder{}
	store := NewStore(svc, alice, sink)
	require.NoError(t, store.LoadConnections(ctx))
	require.Len(t, store.Connections(), 1)

	repo.FailOn("connections.ListAccepted", assert.AnError)
	assert.ErrorIs(t, store.LoadConnections(ctx), apperr.ErrBackend)
	assert.Len(t, store.Connections(), 1)
	assert.Contains(t, sink.Notices(), notify.Notice{Title: "Error", Description: "Failed to load connections", Variant: notify.VariantDestructive})
}

func TestStore_SendFailureNotifies(t *testing.T) {
	_, svc := newFixture(t)
	sink := &notify.Recorder{}
	store := NewStore(svc, alice, sink)

	err := store.SendConnectionRequest(context.Background(), "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.Len(t, sink.Notices(), 1)
	assert.Equal(t, "Failed to send connection request", sink.Notices()[0].Description)
}

func TestStore_HandleChangeReloadsOnlyWhenInvolved(t *testing.T) {
	ctx := context.Background()
	_, svc := newFixture(t)
	sink := &notify.Recorder{}
	store := NewStore(svc, alice, sink)

	row := func(c models.Connection) json.RawMessage {
		b, err := json.Marshal(c)
		require.NoError(t, err)
		return b
	}

	store.HandleChange(ctx, changefeed.Event{Op: changefeed.OpInsert, Relation: "connections",
		New: row(models.Connection{ID: "x", RequesterID: "bob", RecipientID: "carol", CreatedAt: time.Now()})})
	assert.Equal(t, 0, sink.Count(notify.EventConnectionsUpdated))

	store.HandleChange(ctx, changefeed.Event{Op: changefeed.OpDelete, Relation: "connections",
		Old: row(models.Connection{ID: "y", RequesterID: "bob", RecipientID: "alice"})})
	assert.Equal(t, 1, sink.Count(notify.EventConnectionsUpdated))
	assert.Equal(t, 1, sink.Count(notify.EventRequestsUpdated))
}
