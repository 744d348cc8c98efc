// Package session wires one authenticated user's stores to the change feed.
//
// A Session is opened when a socket authenticates and closed when it goes
// away. It owns three subscriptions, each under a name unique to the
// session, so reconnects and parallel tabs never share or leak listeners.
package session

import (
	"context"
	"fmt"
	"sync"

	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/connections"
	"alumninexus/server/internal/conversations"
	"alumninexus/server/internal/directory"
	"alumninexus/server/internal/messaging"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"
	"alumninexus/server/internal/presence"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("session")

// Deps are the shared services every session is built from.
type Deps struct {
	Broker        *changefeed.Broker
	Connections   *connections.Service
	Conversations *conversations.Service
	Messages      *messaging.Service
	Directory     *directory.Service
}

// Snapshot is the state sent to a client right after it connects.
type Snapshot struct {
	UserID      string                     `json:"userId"`
	Connections []models.ConnectionView    `json:"connections"`
	Requests    []models.ConnectionRequest `json:"requests"`
	Contacts    []models.Contact           `json:"contacts"`
}

// Resolved is the payload of a conversation_resolved event.
type Resolved struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type Session struct {
	principal models.Principal
	deps      Deps
	sink      notify.Sink

	Connections *connections.Store
	Messages    *messaging.Channel
	Presence    *presence.Tracker

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   []*changefeed.Subscription
	closed bool
}

// Open subscribes the session's feeds and loads its initial state. The
// feeds are attached first so no change between load and subscribe is lost.
func Open(ctx context.Context, deps Deps, p models.Principal, sink notify.Sink) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		principal:   p,
		deps:        deps,
		sink:        sink,
		Connections: connections.NewStore(deps.Connections, p, sink),
		Messages:    messaging.NewChannel(deps.Messages, p, sink),
		Presence:    presence.NewTracker(sink),
		ctx:         sctx,
		cancel:      cancel,
	}

	feeds := []struct {
		prefix  string
		filter  changefeed.Filter
		handler changefeed.Handler
		resync  func()
	}{
		{
			prefix:  "connections-changes",
			filter:  changefeed.Filter{Op: changefeed.OpAny, Relation: "connections"},
			handler: func(e changefeed.Event) { s.Connections.HandleChange(s.ctx, e) },
			resync:  func() { s.Connections.Refresh(s.ctx) },
		},
		{
			prefix:  "chat-messages",
			filter:  changefeed.Filter{Op: changefeed.OpAny, Relation: "messages"},
			handler: func(e changefeed.Event) { s.Messages.HandleChange(s.ctx, e) },
			resync: func() {
				s.Messages.Resync(s.ctx)
				s.RefreshContacts(s.ctx)
			},
		},
		{
			prefix:  "chat-profiles",
			filter:  changefeed.Filter{Op: changefeed.OpUpdate, Relation: "profiles"},
			handler: s.Presence.HandleProfileUpdate,
			resync:  func() { s.RefreshContacts(s.ctx) },
		},
	}
	for _, feed := range feeds {
		name := fmt.Sprintf("%s-%s-%s", feed.prefix, p.UserID, uuid.NewString())
		sub, err := deps.Broker.Subscribe(name, feed.filter, feed.handler, changefeed.WithResync(feed.resync))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", name, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.Connections.Refresh(sctx)
	s.RefreshContacts(sctx)

	log.Infof("session opened for %s", p.UserID)
	return s, nil
}

func (s *Session) Principal() models.Principal { return s.principal }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// SubscriptionNames lists the live subscription names.
func (s *Session) SubscriptionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		names = append(names, sub.Name())
	}
	return names
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		UserID:      s.principal.UserID,
		Connections: s.Connections.Connections(),
		Requests:    s.Connections.Requests(),
		Contacts:    s.Presence.Contacts(),
	}
}

// RefreshContacts reloads the chat list. On failure the rendered list is
// kept.
func (s *Session) RefreshContacts(ctx context.Context) error {
	contacts, err := s.deps.Conversations.ListContacts(ctx, s.principal)
	if err != nil {
		log.Errorf("load contacts for %s: %v", s.principal.UserID, err)
		notify.Failure(s.sink, "Failed to load conversations")
		return err
	}
	s.Presence.SetContacts(contacts)
	return nil
}

// ResolveConversation finds or creates the direct conversation with
// targetID, emits it and refreshes the chat list.
func (s *Session) ResolveConversation(ctx context.Context, targetID string) (string, error) {
	id, err := s.deps.Conversations.Resolve(ctx, s.principal, targetID)
	if err != nil {
		log.Warningf("resolve conversation %s -> %s: %v", s.principal.UserID, targetID, err)
		notify.Failure(s.sink, "Failed to start conversation")
		return "", err
	}
	s.sink.Emit(notify.EventConversationResolved, Resolved{UserID: targetID, ConversationID: id})
	s.RefreshContacts(ctx)
	return id, nil
}

func (s *Session) LoadMessages(ctx context.Context, conversationID string) error {
	return s.Messages.LoadMessages(ctx, conversationID)
}

func (s *Session) SendMessage(ctx context.Context, conversationID, content string) error {
	_, err := s.Messages.SendMessage(ctx, conversationID, content)
	return err
}

func (s *Session) SendConnectionRequest(ctx context.Context, recipientID string) error {
	return s.Connections.SendConnectionRequest(ctx, recipientID)
}

func (s *Session) AcceptConnectionRequest(ctx context.Context, requestID string) error {
	return s.Connections.AcceptConnectionRequest(ctx, requestID)
}

func (s *Session) RejectConnectionRequest(ctx context.Context, requestID string) error {
	return s.Connections.RejectConnectionRequest(ctx, requestID)
}

// SearchUsers runs a directory search as the session user.
func (s *Session) SearchUsers(ctx context.Context, term string) ([]models.UserSearchResult, error) {
	results, err := s.deps.Directory.SearchUsers(ctx, s.principal, term)
	if err != nil {
		notify.Failure(s.sink, "Failed to search users")
	}
	return results, err
}

// Close releases every subscription. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()

	var result *multierror.Error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", sub.Name(), err))
		}
	}
	log.Infof("session closed for %s", s.principal.UserID)
	return result.ErrorOrNil()
}
