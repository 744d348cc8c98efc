package handlers

import (
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// ConnectionRequestBody represents a new connection request
type ConnectionRequestBody struct {
	RecipientID string `json:"recipientId"`
}

// GetConnections lists accepted connections with the other member's profile
func (h *Handler) GetConnections(c *fiber.Ctx) error {
	connections, err := h.Connections.LoadConnections(c.UserContext(), middleware.GetPrincipal(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, connections)
}

// GetConnectionRequests lists pending requests addressed to the user
func (h *Handler) GetConnectionRequests(c *fiber.Ctx) error {
	requests, err := h.Connections.LoadConnectionRequests(c.UserContext(), middleware.GetPrincipal(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, requests)
}

// SendConnectionRequest asks another member to connect
func (h *Handler) SendConnectionRequest(c *fiber.Ctx) error {
	var req ConnectionRequestBody
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	connection, err := h.Connections.SendConnectionRequest(c.UserContext(), middleware.GetPrincipal(c), req.RecipientID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, connection)
}

// AcceptConnectionRequest accepts a pending request
func (h *Handler) AcceptConnectionRequest(c *fiber.Ctx) error {
	if err := h.Connections.AcceptConnectionRequest(c.UserContext(), middleware.GetPrincipal(c), c.Params("requestId")); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"requestId": c.Params("requestId"), "status": "accepted"})
}

// RejectConnectionRequest rejects a pending request
func (h *Handler) RejectConnectionRequest(c *fiber.Ctx) error {
	if err := h.Connections.RejectConnectionRequest(c.UserContext(), middleware.GetPrincipal(c), c.Params("requestId")); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"requestId": c.Params("requestId"), "status": "rejected"})
}

// GetUsers lists suggested members with their relation to the user
func (h *Handler) GetUsers(c *fiber.Ctx) error {
	users, err := h.Directory.GetAllUsers(c.UserContext(), middleware.GetPrincipal(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, users)
}

// SearchUsers searches members by name or username
func (h *Handler) SearchUsers(c *fiber.Ctx) error {
	users, err := h.Directory.SearchUsers(c.UserContext(), middleware.GetPrincipal(c), c.Query("q"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, users)
}
