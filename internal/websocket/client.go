package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"alumninexus/server/internal/notify"
	"alumninexus/server/internal/session"

	"github.com/gofiber/contrib/websocket"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Client represents a WebSocket client connection. It is also the sink of
// its session: every session event is framed and queued on Send.
type Client struct {
	ID      string // User ID
	Conn    *websocket.Conn
	Hub     *Hub
	Session *session.Session
	Send    chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   userID,
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// Emit implements notify.Sink
func (c *Client) Emit(event notify.EventType, payload interface{}) {
	if err := c.SendMessage(WSMessage{Type: EventType(event), Payload: payload, Timestamp: time.Now()}); err != nil {
		log.Errorf("Failed to marshal %s for %s: %v", event, c.ID, err)
	}
}

// SendMessage sends a message to the client
func (c *Client) SendMessage(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !c.deliver(data) {
		log.Warningf("Dropping %s for slow or closed client: %s", msg.Type, c.ID)
	}
	return nil
}

// deliver queues data without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.Hub.Beat(ctx, c.ID)
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warningf("WebSocket error: %v", err)
			}
			break
		}

		// Parse incoming message
		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			log.Debugf("Failed to parse message: %v", err)
			c.sendError("bad_frame", "Message must be a JSON object with a type")
			continue
		}

		c.handleIncomingMessage(ctx, incoming)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warningf("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleIncomingMessage dispatches a client command to the session. Failed
// commands have already been reported to the user as notices.
func (c *Client) handleIncomingMessage(ctx context.Context, msg IncomingMessage) {
	var err error
	switch msg.Type {
	case CommandLoadMessages:
		err = c.Session.LoadMessages(ctx, msg.String("conversationId"))
	case CommandSendMessage:
		err = c.Session.SendMessage(ctx, msg.String("conversationId"), msg.String("content"))
	case CommandResolveConversation:
		_, err = c.Session.ResolveConversation(ctx, msg.String("userId"))
	case CommandSendConnectionRequest:
		err = c.Session.SendConnectionRequest(ctx, msg.String("recipientId"))
	case CommandAcceptConnectionRequest:
		err = c.Session.AcceptConnectionRequest(ctx, msg.String("requestId"))
	case CommandRejectConnectionRequest:
		err = c.Session.RejectConnectionRequest(ctx, msg.String("requestId"))
	case CommandRefreshContacts:
		err = c.Session.RefreshContacts(ctx)
	case CommandHeartbeat:
		c.Hub.Beat(ctx, c.ID)
	case EventTypingStart, EventTypingStop:
		c.handleTyping(ctx, msg)
	default:
		log.Debugf("Unknown message type: %s", msg.Type)
		c.sendError("unknown_command", "Unknown message type: "+string(msg.Type))
	}
	if err != nil {
		log.Debugf("%s from %s failed: %v", msg.Type, c.ID, err)
	}
}

// handleTyping relays typing indicators to the other participants
func (c *Client) handleTyping(ctx context.Context, msg IncomingMessage) {
	conversationID := msg.String("conversationId")
	if conversationID == "" {
		c.sendError("bad_request", "conversationId is required")
		return
	}

	member, err := c.Session.Messages.IsMember(ctx, conversationID)
	if err != nil || !member {
		c.sendError("not_found", "Not found")
		return
	}

	message := WSMessage{
		Type:      msg.Type,
		Payload:   TypingPayload{UserID: c.ID, ConversationID: conversationID},
		Timestamp: time.Now(),
	}
	if err := c.Hub.BroadcastToConversation(ctx, conversationID, message, c.ID); err != nil {
		log.Warningf("Failed to relay %s in %s: %v", msg.Type, conversationID, err)
	}
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(WSMessage{Type: EventError, Payload: ErrorPayload{Code: code, Message: message}, Timestamp: time.Now()})
}
