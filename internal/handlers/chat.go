package handlers

import (
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// DirectConversationRequest represents a request to open a direct chat
type DirectConversationRequest struct {
	UserID string `json:"userId"`
}

// GetConversations returns the chat list, newest activity first
func (h *Handler) GetConversations(c *fiber.Ctx) error {
	contacts, err := h.Conversations.ListContacts(c.UserContext(), middleware.GetPrincipal(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, contacts)
}

// ResolveDirect returns the direct conversation with a member, creating it
// on first contact
func (h *Handler) ResolveDirect(c *fiber.Ctx) error {
	var req DirectConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	conversationID, err := h.Conversations.Resolve(c.UserContext(), middleware.GetPrincipal(c), req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"conversationId": conversationID,
		"userId":         req.UserID,
	})
}
