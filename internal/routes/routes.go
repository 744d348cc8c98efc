package routes

import (
	"alumninexus/server/internal/handlers"
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handler, secret []byte) {
	auth := middleware.Auth(secret)

	// API v1 group
	api := app.Group("/api/v1")

	// Health check (public)
	api.Get("/health", h.Health)

	// Profile routes (protected)
	api.Get("/me", auth, h.GetMe)

	// Connection routes (protected)
	connections := api.Group("/connections", auth)
	connections.Get("/", middleware.RelaxedRateLimiter(), h.GetConnections)
	connections.Post("/", middleware.ModerateRateLimiter(), h.SendConnectionRequest)
	connections.Get("/requests", middleware.RelaxedRateLimiter(), h.GetConnectionRequests)
	connections.Post("/requests/:requestId/accept", middleware.ModerateRateLimiter(), h.AcceptConnectionRequest)
	connections.Post("/requests/:requestId/reject", middleware.ModerateRateLimiter(), h.RejectConnectionRequest)

	// User directory (protected)
	users := api.Group("/users", auth, middleware.RelaxedRateLimiter())
	users.Get("/", h.GetUsers)
	users.Get("/search", h.SearchUsers)
	users.Get("/:userId", h.GetProfile)

	// Conversation routes (protected)
	conversations := api.Group("/conversations", auth)
	conversations.Get("/", h.GetConversations)
	conversations.Post("/direct", middleware.ModerateRateLimiter(), h.ResolveDirect)
	conversations.Post("/group", middleware.ModerateRateLimiter(), h.CreateGroup)
	conversations.Get("/:conversationId/messages", h.GetMessages)
	conversations.Post("/:conversationId/messages", h.SendMessage)

	// Assistant routes (protected, rate limited)
	assistant := api.Group("/ai", auth, middleware.AIRateLimiter())
	assistant.Post("/chat", h.Chat)
	assistant.Post("/chat/stream", h.ChatStream)
	assistant.Post("/recommendations/alumni", h.AlumniRecommendations)
	assistant.Post("/recommendations/mentors", h.MentorMatches)
	assistant.Post("/recommendations/events", h.EventSuggestions)
	assistant.Post("/career-advice", h.CareerAdvice)
	assistant.Post("/interview-prep", h.InterviewPrep)
	assistant.Post("/networking/icebreakers", h.Icebreakers)
	assistant.Post("/profile/analyze", h.AnalyzeProfile)
	assistant.Post("/search/smart", h.SmartSearch)

	// WebSocket route (protected)
	api.Get("/ws", auth, h.WebSocketUpgrade, websocket.New(h.WebSocketHandler))

	// WebSocket stats (protected, for debugging)
	api.Get("/ws/stats", auth, h.GetWebSocketStats)
}
