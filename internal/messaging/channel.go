package messaging

import (
	"context"
	"sync"

	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"

	lru "github.com/hashicorp/golang-lru"
)

const (
	previewLength   = 50
	memberCacheSize = 512
)

// Loaded is the payload of a messages_loaded event.
type Loaded struct {
	ConversationID string               `json:"conversationId"`
	Messages       []models.ChatMessage `json:"messages"`
}

// Channel is one session's message cache, fed by the session's own commands
// and by the messages change feed.
type Channel struct {
	svc       *Service
	principal models.Principal
	sink      notify.Sink

	mu      sync.Mutex
	reducer *Reducer

	// conversation id -> bool. Participants are written with the
	// conversation and never change, so both answers stay valid.
	members *lru.Cache
}

func NewChannel(svc *Service, p models.Principal, sink notify.Sink) *Channel {
	members, err := lru.New(memberCacheSize)
	if err != nil {
		panic(err)
	}
	return &Channel{
		svc:       svc,
		principal: p,
		sink:      sink,
		reducer:   NewReducer(p.UserID),
		members:   members,
	}
}

func (c *Channel) Messages(conversationID string) []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reducer.Messages(conversationID)
}

// LoadMessages replaces the cached history. On failure the cache is kept.
func (c *Channel) LoadMessages(ctx context.Context, conversationID string) error {
	messages, err := c.svc.LoadMessages(ctx, c.principal, conversationID)
	if err != nil {
		log.Errorf("load messages of %s for %s: %v", conversationID, c.principal.UserID, err)
		notify.Failure(c.sink, "Failed to load messages")
		return err
	}

	c.members.Add(conversationID, true)
	c.mu.Lock()
	c.reducer.Apply(Event{Kind: LocalLoaded, ConversationID: conversationID, Messages: messages})
	loaded := c.reducer.Messages(conversationID)
	c.mu.Unlock()

	c.sink.Emit(notify.EventMessagesLoaded, Loaded{ConversationID: conversationID, Messages: loaded})
	return nil
}

// SendMessage stores the message and appends it to the cache as sent
// without waiting for the change feed.
func (c *Channel) SendMessage(ctx context.Context, conversationID, content string) (*models.ChatMessage, error) {
	message, err := c.svc.SendMessage(ctx, c.principal, conversationID, content)
	if err != nil {
		log.Warningf("send message to %s by %s: %v", conversationID, c.principal.UserID, err)
		notify.Failure(c.sink, "Failed to send message")
		return nil, err
	}

	c.members.Add(conversationID, true)
	c.mu.Lock()
	chat, appended := c.reducer.Apply(Event{Kind: LocalSent, ConversationID: conversationID, Message: *message})
	c.mu.Unlock()

	if !appended {
		chat = message.ToChatMessage(c.principal.UserID, models.MessageSent)
		return &chat, nil
	}
	c.sink.Emit(notify.EventMessageAppended, chat)
	return &chat, nil
}

// HandleChange applies a messages row change. Rows of conversations the
// principal does not belong to are ignored.
func (c *Channel) HandleChange(ctx context.Context, e changefeed.Event) {
	var row models.Message
	if err := e.DecodeNew(&row); err != nil {
		log.Warningf("undecodable %s on messages: %v", e.Op, err)
		return
	}

	var kind EventKind
	switch e.Op {
	case changefeed.OpInsert:
		if row.SenderID == c.principal.UserID {
			return
		}
		kind = RemoteInserted
	case changefeed.OpUpdate:
		kind = RemoteUpdated
	default:
		return
	}

	if !c.isMember(ctx, row.ConversationID) {
		return
	}

	c.mu.Lock()
	chat, changed := c.reducer.Apply(Event{Kind: kind, ConversationID: row.ConversationID, Message: row})
	c.mu.Unlock()
	if !changed {
		return
	}

	if kind == RemoteUpdated {
		c.sink.Emit(notify.EventMessageUpdated, chat)
		return
	}
	c.sink.Emit(notify.EventMessageAppended, chat)
	notify.Success(c.sink, "New message", preview(row.Content))
}

// IsMember reports whether the principal belongs to the conversation.
// Answers are remembered, so rows of foreign conversations cost one lookup
// each rather than one per change. Errors are not remembered.
func (c *Channel) IsMember(ctx context.Context, conversationID string) (bool, error) {
	if known, ok := c.members.Get(conversationID); ok {
		return known.(bool), nil
	}

	ok, err := c.svc.IsParticipant(ctx, conversationID, c.principal.UserID)
	if err != nil {
		return false, err
	}
	c.members.Add(conversationID, ok)
	return ok, nil
}

// Resync reloads every cached conversation. It runs after the change feed
// dropped events for this channel.
func (c *Channel) Resync(ctx context.Context) {
	c.mu.Lock()
	ids := c.reducer.Conversations()
	c.mu.Unlock()

	log.Infof("resyncing %d conversations for %s", len(ids), c.principal.UserID)
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		c.LoadMessages(ctx, id)
	}
}

func (c *Channel) isMember(ctx context.Context, conversationID string) bool {
	ok, err := c.IsMember(ctx, conversationID)
	if err != nil {
		log.Warningf("membership of %s in %s: %v", c.principal.UserID, conversationID, err)
		return false
	}
	return ok
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes) + "..."
}
