package handlers

import (
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetMe returns the profile of the authenticated user
func (h *Handler) GetMe(c *fiber.Ctx) error {
	profile, err := h.Directory.GetProfile(c.UserContext(), middleware.GetPrincipal(c), "")
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.StatusOK, fiber.Map{
		"profile": profile,
		"email":   middleware.GetUserEmail(c),
	})
}

// GetProfile returns another member's profile
func (h *Handler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.Directory.GetProfile(c.UserContext(), middleware.GetPrincipal(c), c.Params("userId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, profile)
}
