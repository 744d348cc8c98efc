package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"alumninexus/server/internal/presence"
	"alumninexus/server/internal/repository"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("websocket")

// Hub maintains the set of active clients. A user may hold several sockets
// (tabs, devices) at once.
type Hub struct {
	// Registered clients grouped by user ID
	Clients map[string]map[*Client]struct{}

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	heartbeat     *presence.Heartbeat
	conversations repository.ConversationRepository

	// closed when Run returns
	done chan struct{}

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(heartbeat *presence.Heartbeat, conversations repository.ConversationRepository) *Hub {
	return &Hub{
		Clients:       make(map[string]map[*Client]struct{}),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		done:          make(chan struct{}),
		heartbeat:     heartbeat,
		conversations: conversations,
	}
}

// Run starts the hub's main loop. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.registerClient(ctx, client)
		case client := <-h.Unregister:
			h.unregisterClient(ctx, client)
		}
	}
}

// Join hands client to the running hub. It reports false once the hub has
// stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave hands client back to the hub. After the hub stopped the client is
// only closed, so callers never block on a dead loop.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
		client.close()
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	if h.Clients[client.ID] == nil {
		h.Clients[client.ID] = make(map[*Client]struct{})
	}
	h.Clients[client.ID][client] = struct{}{}
	sockets := len(h.Clients[client.ID])
	h.mu.Unlock()

	// Mark the profile online; the profiles feed tells everyone else
	if err := h.heartbeat.Connect(ctx, client.ID); err != nil {
		log.Errorf("Failed to update online status: %v", err)
	}

	log.Infof("Client connected: %s (%d sockets)", client.ID, sockets)
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	set, ok := h.Clients[client.ID]
	if ok {
		if _, ok = set[client]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(h.Clients, client.ID)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	client.close()

	if err := h.heartbeat.Disconnect(ctx, client.ID); err != nil {
		log.Errorf("Failed to update offline status: %v", err)
	}

	log.Infof("Client disconnected: %s", client.ID)
}

// BroadcastToUser sends a message to every socket of a user
func (h *Hub) BroadcastToUser(userID string, message WSMessage) {
	h.BroadcastToUsers([]string{userID}, message)
}

// BroadcastToUsers sends a message to multiple users
func (h *Hub) BroadcastToUsers(userIDs []string, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Errorf("Failed to marshal message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		for client := range h.Clients[userID] {
			if !client.deliver(data) {
				log.Warningf("Failed to send %s to client: %s", message.Type, userID)
			}
		}
	}
}

// BroadcastToConversation sends a message to the other participants of a
// conversation
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID string, message WSMessage, excludeUserID string) error {
	others, err := h.conversations.ListOtherParticipants(ctx, conversationID, excludeUserID)
	if err != nil {
		return err
	}
	userIDs := make([]string, 0, len(others))
	for _, p := range others {
		userIDs = append(userIDs, p.UserID)
	}
	h.BroadcastToUsers(userIDs, message)
	return nil
}

// Beat records liveness for a user
func (h *Hub) Beat(ctx context.Context, userID string) {
	if err := h.heartbeat.Beat(ctx, userID); err != nil {
		log.Warningf("Failed to record heartbeat for %s: %v", userID, err)
	}
}

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.Clients[userID]) > 0
}

// GetOnlineUsers returns a list of currently online user IDs
func (h *Hub) GetOnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]string, 0, len(h.Clients))
	for userID := range h.Clients {
		userIDs = append(userIDs, userID)
	}

	return userIDs
}

// GetOnlineCount returns the number of connected users
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.Clients)
}

// GetSocketCount returns the number of open sockets
func (h *Hub) GetSocketCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.Clients {
		n += len(set)
	}
	return n
}
