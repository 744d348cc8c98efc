package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"alumninexus/server/internal/ai"
	"alumninexus/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// ChatRequest represents a free-form assistant conversation
type ChatRequest struct {
	Messages []ai.Message `json:"messages"`
	Options  ai.Options   `json:"options"`
}

type AlumniRecommendationsRequest struct {
	UserProfile interface{} `json:"userProfile"`
	Alumni      interface{} `json:"alumni"`
}

type MentorMatchesRequest struct {
	StudentProfile interface{} `json:"studentProfile"`
	Mentors        interface{} `json:"mentors"`
}

type EventSuggestionsRequest struct {
	UserProfile interface{} `json:"userProfile"`
	Events      interface{} `json:"events"`
}

type CareerAdviceRequest struct {
	Query       string      `json:"query"`
	UserContext interface{} `json:"userContext"`
}

type InterviewPrepRequest struct {
	JobRole    string `json:"jobRole"`
	Experience string `json:"experience"`
}

type IcebreakersRequest struct {
	User1Profile interface{} `json:"user1Profile"`
	User2Profile interface{} `json:"user2Profile"`
}

type ProfileAnalysisRequest struct {
	ProfileData interface{} `json:"profileData"`
}

type SmartSearchRequest struct {
	Query   string      `json:"query"`
	Context interface{} `json:"context"`
}

// Chat answers a conversation with the assistant
func (h *Handler) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	reply, err := h.AI.Chat(c.UserContext(), middleware.GetPrincipal(c), req.Messages, req.Options)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, reply)
}

// ChatStream answers a conversation as server-sent events
func (h *Handler) ChatStream(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := ai.ValidateMessages(req.Messages); err != nil {
		return fail(c, err)
	}
	p := middleware.GetPrincipal(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The writer runs after the handler returns, so it must not touch c.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		err := h.AI.Stream(context.Background(), p, req.Messages, req.Options, func(chunk string) error {
			frame, err := json.Marshal(fiber.Map{"chunk": chunk})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			log.Warningf("Chat stream for %s ended early: %v", p.UserID, err)
			return
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	})
	return nil
}

func (h *Handler) runPrompt(c *fiber.Ctx, key string, prompt ai.Prompt, err error) error {
	if err != nil {
		return fail(c, err)
	}
	reply, err := h.AI.Run(c.UserContext(), middleware.GetPrincipal(c), prompt)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		key:        reply.Content,
		"fallback": reply.Fallback,
	})
}

// AlumniRecommendations suggests alumni worth connecting with
func (h *Handler) AlumniRecommendations(c *fiber.Ctx) error {
	var req AlumniRecommendationsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return h.runPrompt(c, "recommendations", ai.AlumniRecommendations(req.UserProfile, req.Alumni), nil)
}

// MentorMatches suggests mentors for a student
func (h *Handler) MentorMatches(c *fiber.Ctx) error {
	var req MentorMatchesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return h.runPrompt(c, "suggestions", ai.MentorMatches(req.StudentProfile, req.Mentors), nil)
}

// EventSuggestions recommends events for a member
func (h *Handler) EventSuggestions(c *fiber.Ctx) error {
	var req EventSuggestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return h.runPrompt(c, "recommendations", ai.EventSuggestions(req.UserProfile, req.Events), nil)
}

// CareerAdvice answers a career question
func (h *Handler) CareerAdvice(c *fiber.Ctx) error {
	var req CareerAdviceRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	prompt, err := ai.CareerAdvice(req.Query, req.UserContext)
	return h.runPrompt(c, "advice", prompt, err)
}

// InterviewPrep generates interview questions for a role
func (h *Handler) InterviewPrep(c *fiber.Ctx) error {
	var req InterviewPrepRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	prompt, err := ai.InterviewQuestions(req.JobRole, req.Experience)
	return h.runPrompt(c, "questions", prompt, err)
}

// Icebreakers suggests conversation starters for two members
func (h *Handler) Icebreakers(c *fiber.Ctx) error {
	var req IcebreakersRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	return h.runPrompt(c, "icebreakers", ai.Icebreakers(req.User1Profile, req.User2Profile), nil)
}

// AnalyzeProfile reviews a profile
func (h *Handler) AnalyzeProfile(c *fiber.Ctx) error {
	var req ProfileAnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	prompt, err := ai.ProfileAnalysis(req.ProfileData)
	return h.runPrompt(c, "analysis", prompt, err)
}

// SmartSearch interprets a search query
func (h *Handler) SmartSearch(c *fiber.Ctx) error {
	var req SmartSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	prompt, err := ai.SmartSearch(req.Query, req.Context)
	return h.runPrompt(c, "result", prompt, err)
}
