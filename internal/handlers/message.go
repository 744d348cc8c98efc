package handlers

import (
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest represents send message request body
type SendMessageRequest struct {
	Content string `json:"content"`
}

// GetMessages gets the history of a conversation, oldest first
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	messages, err := h.Messages.LoadMessages(c.UserContext(), middleware.GetPrincipal(c), c.Params("conversationId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, messages)
}

// SendMessage sends a message to a conversation
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	message, err := h.Messages.SendMessage(c.UserContext(), middleware.GetPrincipal(c), c.Params("conversationId"), req.Content)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, message)
}
