// Package handlers exposes the services over fiber. Every response uses the
// {success, data} or {success: false, error} envelope.
package handlers

import (
	"alumninexus/server/internal/ai"
	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/session"
	ws "alumninexus/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("handlers")

// Handler holds the services behind the REST and websocket routes. The
// embedded Deps are also what every websocket session is opened with.
type Handler struct {
	session.Deps
	AI  *ai.Service
	Hub *ws.Hub
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// fail replies with the status and user-facing text for err. Internal
// detail only goes to the log.
func fail(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   apperr.UserMessage(err),
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Invalid request body",
	})
}

// Health reports that the API is up
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Alumni Nexus API is running",
	})
}
