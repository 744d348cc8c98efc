package handlers

import (
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// CreateGroupRequest represents create group request body
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

// CreateGroup creates a group conversation with the caller as admin
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	conversation, err := h.Conversations.CreateGroup(c.UserContext(), middleware.GetPrincipal(c), req.Name, req.MemberIDs)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, conversation)
}
