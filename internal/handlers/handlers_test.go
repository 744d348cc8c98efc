package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alumninexus/server/internal/ai"
	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/changefeed"
	"alumninexus/server/internal/connections"
	"alumninexus/server/internal/conversations"
	"alumninexus/server/internal/directory"
	"alumninexus/server/internal/messaging"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/presence"
	"alumninexus/server/internal/repository/memory"
	"alumninexus/server/internal/session"
	ws "alumninexus/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	chunks []string
	err    error
}

func (s stubCompleter) Complete(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.chunks, ""), nil
}

func (s stubCompleter) Stream(ctx context.Context, messages []ai.Message, opts ai.Options, onChunk func(string) error) error {
	for _, chunk := range s.chunks {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return s.err
}

var providerDown = fmt.Errorf("%w: status 503", apperr.ErrAIProvider)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// newApp serves h for a caller already authenticated as userID.
func newApp(t *testing.T, completer ai.Completer) (*memory.Store, *fiber.App) {
	t.Helper()
	store := memory.New()
	store.AddProfile(models.Profile{ID: "alice", FullName: "Alice Moreno"})
	store.AddProfile(models.Profile{ID: "bob", FullName: "Bob Stone"})
	store.AddProfile(models.Profile{ID: "carol", FullName: "Carol Reyes"})
	store.AddDirectConversation("c-ab", "alice", "bob", time.Now())

	h := &Handler{
		Deps: session.Deps{
			Broker:        changefeed.NewBroker(),
			Connections:   connections.NewService(store.Connections(), store.Profiles()),
			Conversations: conversations.NewService(store.Conversations(), store.Profiles(), store.Messages()),
			Messages:      messaging.NewService(store.Messages(), store.Conversations()),
			Directory:     directory.NewService(store.Profiles(), store.Connections()),
		},
		AI:  ai.NewService(completer, nil),
		Hub: ws.NewHub(presence.NewHeartbeat(store.Profiles(), time.Minute, time.Second), store.Conversations()),
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", c.Get("X-Test-User", "alice"))
		return c.Next()
	})
	app.Get("/me", h.GetMe)
	app.Get("/connections", h.GetConnections)
	app.Get("/connections/requests", h.GetConnectionRequests)
	app.Post("/connections", h.SendConnectionRequest)
	app.Post("/connections/requests/:requestId/accept", h.AcceptConnectionRequest)
	app.Post("/connections/requests/:requestId/reject", h.RejectConnectionRequest)
	app.Get("/users", h.GetUsers)
	app.Get("/users/search", h.SearchUsers)
	app.Get("/conversations", h.GetConversations)
	app.Post("/conversations/direct", h.ResolveDirect)
	app.Post("/conversations/group", h.CreateGroup)
	app.Get("/conversations/:conversationId/messages", h.GetMessages)
	app.Post("/conversations/:conversationId/messages", h.SendMessage)
	app.Post("/ai/chat", h.Chat)
	app.Post("/ai/chat/stream", h.ChatStream)
	app.Post("/ai/career-advice", h.CareerAdvice)
	app.Post("/ai/interview-prep", h.InterviewPrep)
	app.Post("/ai/profile/analyze", h.AnalyzeProfile)
	app.Get("/ws/stats", h.GetWebSocketStats)
	return store, app
}

func call(t *testing.T, app *fiber.App, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestConnectionFlow(t *testing.T) {
	_, app := newApp(t, stubCompleter{})

	status, env := call(t, app, http.MethodPost, "/connections", "alice", fiber.Map{"recipientId": "bob"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var created models.Connection
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, models.ConnectionPending, created.Status)

	status, env = call(t, app, http.MethodPost, "/connections", "bob", fiber.Map{"recipientId": "alice"})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, _ = call(t, app, http.MethodPost, "/connections/requests/"+created.ID+"/accept", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status, "only the recipient may accept")

	status, env = call(t, app, http.MethodGet, "/connections/requests", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var requests []models.ConnectionRequest
	require.NoError(t, json.Unmarshal(env.Data, &requests))
	require.Len(t, requests, 1)

	status, _ = call(t, app, http.MethodPost, "/connections/requests/"+created.ID+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, app, http.MethodGet, "/connections", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var views []models.ConnectionView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "bob", views[0].ConnectedUserID)
}

func TestSendConnectionRequest_Errors(t *testing.T) {
	_, app := newApp(t, stubCompleter{})

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "self", body: fiber.Map{"recipientId": "alice"}, status: http.StatusBadRequest},
		{name: "missing recipient", body: fiber.Map{}, status: http.StatusBadRequest},
		{name: "unknown recipient", body: fiber.Map{"recipientId": "zed"}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, app, http.MethodPost, "/connections", "alice", tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestGetMe(t *testing.T) {
	_, app := newApp(t, stubCompleter{})

	status, env := call(t, app, http.MethodGet, "/me", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Profile models.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Bob Stone", data.Profile.FullName)
}

func TestSearchUsers(t *testing.T) {
	_, app := newApp(t, stubCompleter{})

	status, env := call(t, app, http.MethodGet, "/users/search?q=car", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var results []models.UserSearchResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "carol", results[0].ID)

	status, _ = call(t, app, http.MethodGet, "/users/search?q=", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestConversationsAndMessages(t *testing.T) {
	store, app := newApp(t, stubCompleter{})

	status, env := call(t, app, http.MethodPost, "/conversations/direct", "alice", fiber.Map{"userId": "bob"})
	require.Equal(t, http.StatusOK, status, env.Error)
	var resolved struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, "c-ab", resolved.ConversationID)
	assert.Equal(t, 1, store.CountConversations())

	status, _ = call(t, app, http.MethodPost, "/conversations/c-ab/messages", "alice", fiber.Map{"content": "<b>hi</b> bob"})
	require.Equal(t, http.StatusCreated, status)

	status, env = call(t, app, http.MethodGet, "/conversations/c-ab/messages", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var messages []models.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "<b>hi</b> bob", messages[0].Content)

	status, _ = call(t, app, http.MethodGet, "/conversations/c-ab/messages", "carol", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodPost, "/conversations/c-ab/messages", "alice", fiber.Map{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, app, http.MethodGet, "/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	var contacts []models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "<b>hi</b> bob", contacts[0].LastMessage)
}

func TestCreateGroup(t *testing.T) {
	_, app := newApp(t, stubCompleter{})

	status, env := call(t, app, http.MethodPost, "/conversations/group", "alice", fiber.Map{"name": "Class of 2019", "memberIds": []string{"bob", "carol"}})
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, _ = call(t, app, http.MethodPost, "/conversations/group", "alice", fiber.Map{"name": "Solo", "memberIds": []string{"alice"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBackendFailureHidesDetail(t *testing.T) {
	store, app := newApp(t, stubCompleter{})
	store.FailOn("messages.ListByConversation", fmt.Errorf("pq: relation does not exist"))

	status, env := call(t, app, http.MethodGet, "/conversations/c-ab/messages", "alice", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.NotContains(t, env.Error, "relation")
}

func TestChat(t *testing.T) {
	messages := []ai.Message{{Role: "user", Content: "any career tips?"}}

	tests := []struct {
		name      string
		completer ai.Completer
		body      interface{}
		status    int
		want      ai.Reply
	}{
		{
			name:      "provider answer",
			completer: stubCompleter{chunks: []string{"Network early."}},
			body:      ChatRequest{Messages: messages},
			status:    http.StatusOK,
			want:      ai.Reply{Content: "Network early."},
		},
		{
			name:      "provider failure falls back",
			completer: stubCompleter{err: providerDown},
			body:      ChatRequest{Messages: messages},
			status:    http.StatusOK,
			want:      ai.Reply{Content: ai.Fallback(messages), Fallback: true},
		},
		{
			name:      "no messages",
			completer: stubCompleter{},
			body:      ChatRequest{},
			status:    http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newApp(t, tt.completer)
			status, env := call(t, app, http.MethodPost, "/ai/chat", "alice", tt.body)
			require.Equal(t, tt.status, status)
			if tt.status != http.StatusOK {
				assert.Equal(t, "Messages array is required", env.Error)
				return
			}
			var reply ai.Reply
			require.NoError(t, json.Unmarshal(env.Data, &reply))
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestChatStream(t *testing.T) {
	messages := []ai.Message{{Role: "user", Content: "hello"}}

	tests := []struct {
		name      string
		completer ai.Completer
		want      string
	}{
		{
			name:      "chunks then done",
			completer: stubCompleter{chunks: []string{"Hel", "lo"}},
			want:      "data: {\"chunk\":\"Hel\"}\n\ndata: {\"chunk\":\"lo\"}\n\ndata: [DONE]\n\n",
		},
		{
			name:      "failure before first chunk sends fallback",
			completer: stubCompleter{err: providerDown},
			want:      fmt.Sprintf("data: {\"chunk\":%q}\n\ndata: [DONE]\n\n", ai.Fallback(messages)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newApp(t, tt.completer)
			data, err := json.Marshal(ChatRequest{Messages: messages})
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/ai/chat/stream", bytes.NewReader(data))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestChatStream_RejectsEmptyConversation(t *testing.T) {
	_, app := newApp(t, stubCompleter{chunks: []string{"x"}})
	status, env := call(t, app, http.MethodPost, "/ai/chat/stream", "alice", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestPromptFeatures(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		key    string
	}{
		{name: "career advice", path: "/ai/career-advice", body: fiber.Map{"query": "How do I move into product?"}, status: http.StatusOK, key: "advice"},
		{name: "career advice needs a query", path: "/ai/career-advice", body: fiber.Map{}, status: http.StatusBadRequest},
		{name: "interview prep", path: "/ai/interview-prep", body: fiber.Map{"jobRole": "SRE", "experience": "junior"}, status: http.StatusOK, key: "questions"},
		{name: "interview prep needs experience", path: "/ai/interview-prep", body: fiber.Map{"jobRole": "SRE"}, status: http.StatusBadRequest},
		{name: "profile analysis", path: "/ai/profile/analyze", body: fiber.Map{"profileData": fiber.Map{"headline": "Engineer"}}, status: http.StatusOK, key: "analysis"},
		{name: "profile analysis needs a profile", path: "/ai/profile/analyze", body: fiber.Map{}, status: http.StatusBadRequest},
	}

	_, app := newApp(t, stubCompleter{chunks: []string{"ok"}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, app, http.MethodPost, tt.path, "alice", tt.body)
			require.Equal(t, tt.status, status)
			if tt.status != http.StatusOK {
				assert.False(t, env.Success)
				return
			}
			var data map[string]interface{}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, "ok", data[tt.key])
			assert.Equal(t, false, data["fallback"])
		})
	}
}

func TestGetWebSocketStats(t *testing.T) {
	_, app := newApp(t, stubCompleter{})
	status, env := call(t, app, http.MethodGet, "/ws/stats", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, float64(0), data["onlineUsers"])
}
