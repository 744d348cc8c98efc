package handlers

import (
	"context"

	"alumninexus/server/internal/models"
	"alumninexus/server/internal/notify"
	"alumninexus/server/internal/session"
	ws "alumninexus/server/internal/websocket"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func (h *Handler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"success": false,
		"error":   "WebSocket upgrade required",
	})
}

// WebSocketHandler opens a session for the socket and pumps it until the
// connection closes
func (h *Handler) WebSocketHandler(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	client := ws.NewClient(userID, c, h.Hub)

	s, err := session.Open(context.Background(), h.Deps, models.Principal{UserID: userID}, client)
	if err != nil {
		log.Errorf("Failed to open session for %s: %v", userID, err)
		c.Close()
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warningf("Closing session for %s: %v", userID, err)
		}
	}()
	client.Session = s

	if !h.Hub.Join(client) {
		log.Warningf("Hub stopped, refusing socket for %s", userID)
		c.Close()
		return
	}
	client.Emit(notify.EventSnapshot, s.Snapshot())

	go client.WritePump()
	client.ReadPump(s.Context()) // This blocks until connection closes
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(c *fiber.Ctx) error {
	if h.Hub == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "WebSocket hub not initialized",
		})
	}

	return ok(c, fiber.StatusOK, fiber.Map{
		"onlineUsers": h.Hub.GetOnlineCount(),
		"sockets":     h.Hub.GetSocketCount(),
		"userIds":     h.Hub.GetOnlineUsers(),
	})
}
