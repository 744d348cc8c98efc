package connections

import (
	"context"
	"sync"

	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"
)

// Store is one session's view of its connections and incoming requests.
// Mutations notify the user and then refresh the affected lists without
// waiting for the change feed.
type Store struct {
	svc       *Service
	principal models.Principal
	sink      notify.Sink

	mu          sync.RWMutex
	connections []models.ConnectionView
	requests    []models.ConnectionRequest
}

func NewStore(svc *Service, p models.Principal, sink notify.Sink) *Store {
	return &Store{
		svc:         svc,
		principal:   p,
		sink:        sink,
		connections: []models.ConnectionView{},
		requests:    []models.ConnectionRequest{},
	}
}

func (s *Store) Connections() []models.ConnectionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConnectionView(nil), s.connections...)
}

func (s *Store) Requests() []models.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConnectionRequest(nil), s.requests...)
}

// LoadConnections replaces the accepted list. On failure the cached list is
// kept.
func (s *Store) LoadConnections(ctx context.Context) error {
	views, err := s.svc.LoadConnections(ctx, s.principal)
	if err != nil {
		log.Errorf("load connections for %s: %v", s.principal.UserID, err)
		notify.Failure(s.sink, "Failed to load connections")
		return err
	}
	s.mu.Lock()
	s.connections = views
	s.mu.Unlock()
	s.sink.Emit(notify.EventConnectionsUpdated, views)
	return nil
}

// LoadConnectionRequests replaces the pending list. On failure the cached
// list is kept.
func (s *Store) LoadConnectionRequests(ctx context.Context) error {
	requests, err := s.svc.LoadConnectionRequests(ctx, s.principal)
	if err != nil {
		log.Errorf("load connection requests for %s: %v", s.principal.UserID, err)
		notify.Failure(s.sink, "Failed to load connection requests")
		return err
	}
	s.mu.Lock()
	s.requests = requests
	s.mu.Unlock()
	s.sink.Emit(notify.EventRequestsUpdated, requests)
	return nil
}

// Refresh reloads both lists.
func (s *Store) Refresh(ctx context.Context) {
	s.LoadConnections(ctx)
	s.LoadConnectionRequests(ctx)
}

func (s *Store) SendConnectionRequest(ctx context.Context, recipientID string) error {
	if _, err := s.svc.SendConnectionRequest(ctx, s.principal, recipientID); err != nil {
		log.Warningf("send connection request from %s: %v", s.principal.UserID, err)
		notify.Failure(s.sink, "Failed to send connection request")
		return err
	}
	notify.Success(s.sink, "Success", "Connection request sent successfully")
	return nil
}

func (s *Store) AcceptConnectionRequest(ctx context.Context, requestID string) error {
	if err := s.svc.AcceptConnectionRequest(ctx, s.principal, requestID); err != nil {
		log.Warningf("accept connection request %s: %v", requestID, err)
		notify.Failure(s.sink, "Failed to accept connection request")
		return err
	}
	notify.Success(s.sink, "Success", "Connection request accepted")
	s.Refresh(ctx)
	return nil
}

// RejectConnectionRequest deletes the request and reloads only the pending
// list; the accepted list cannot have changed.
func (s *Store) RejectConnectionRequest(ctx context.Context, requestID string) error {
	if err := s.svc.RejectConnectionRequest(ctx, s.principal, requestID); err != nil {
		log.Warningf("reject connection request %s: %v", requestID, err)
		notify.Failure(s.sink, "Failed to reject connection request")
		return err
	}
	notify.Success(s.sink, "Success", "Connection request rejected")
	s.LoadConnectionRequests(ctx)
	return nil
}

// HandleChange reloads both lists when a change touches the principal.
func (s *Store) HandleChange(ctx context.Context, e changefeed.Event) {
	if !s.touches(e) {
		return
	}
	s.Refresh(ctx)
}

func (s *Store) touches(e changefeed.Event) bool {
	var row models.Connection
	if e.DecodeNew(&row) == nil && row.Involves(s.principal.UserID) {
		return true
	}
	row = models.Connection{}
	return e.DecodeOld(&row) == nil && row.Involves(s.principal.UserID)
}
