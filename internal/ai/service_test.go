package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/transcripts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var alice = models.Principal{UserID: "alice"}

type memoryRecorder struct {
	mu        sync.Mutex
	exchanges []transcripts.Exchange
	err       error
}

func (r *memoryRecorder) Record(_ context.Context, e transcripts.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, e)
	return r.err
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		last string
		want string
	}{
		{"recommend", "Can you RECOMMEND someone?", fallbackRules[0].reply},
		{"career", "career switch into data", fallbackRules[1].reply},
		{"mentor", "I need a mentor", fallbackRules[2].reply},
		{"first rule wins", "recommend a career mentor", fallbackRules[0].reply},
		{"default", "hello there", defaultFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := []Message{{Role: "user", Content: "mentor"}, {Role: "user", Content: tt.last}}
			assert.Equal(t, tt.want, Fallback(msgs))
		})
	}
	assert.Equal(t, defaultFallback, Fallback(nil))
}

func TestService_ChatFallsBackOnProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	rec := &memoryRecorder{}
	svc := NewService(completer, rec)

	msgs := []Message{{Role: "user", Content: "Any career advice?"}}
	completer.EXPECT().
		Complete(gomock.Any(), msgs, Options{}).
		Return("", errors.Join(apperr.ErrAIProvider, context.DeadlineExceeded))

	reply, err := svc.Chat(context.Background(), alice, msgs, Options{})
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, "Career development is a journey. Consider connecting with alumni in your field of interest for personalized advice.", reply.Content)

	require.Len(t, rec.exchanges, 1)
	assert.Equal(t, "chat", rec.exchanges[0].Feature)
	assert.True(t, rec.exchanges[0].Fallback)
}

func TestService_ChatValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewService(NewMockCompleter(ctrl), nil)

	_, err := svc.Chat(context.Background(), alice, nil, Options{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Chat(context.Background(), alice, []Message{{Content: "no role"}}, Options{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Chat(context.Background(), models.Principal{}, []Message{{Role: "user", Content: "hi"}}, Options{})
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
}

func TestService_RunUsesFeatureBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	rec := &memoryRecorder{err: errors.New("mongo down")}
	svc := NewService(completer, rec)

	prompt, err := InterviewQuestions("Backend Engineer", "3 years")
	require.NoError(t, err)
	completer.EXPECT().
		Complete(gomock.Any(), prompt.Messages, Options{MaxTokens: 1000}).
		Return("1. Design a rate limiter.", nil)

	reply, err := svc.Run(context.Background(), alice, prompt)
	require.NoError(t, err)
	assert.Equal(t, Reply{Content: "1. Design a rate limiter."}, reply)
	assert.Equal(t, "interview_questions", rec.exchanges[0].Feature)
}

func TestService_Stream(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "Who should I mentor?"}}

	tests := []struct {
		name       string
		provider   func(onChunk func(string) error) error
		wantChunks []string
		wantText   string
		fallback   bool
	}{
		{
			name: "fragments",
			provider: func(onChunk func(string) error) error {
				require.NoError(t, onChunk("Hel"))
				require.NoError(t, onChunk("lo"))
				return nil
			},
			wantChunks: []string{"Hel", "lo"},
			wantText:   "Hello",
		},
		{
			name:       "fails before first chunk",
			provider:   func(func(string) error) error { return apperr.ErrAIProvider },
			wantChunks: []string{fallbackRules[2].reply},
			wantText:   fallbackRules[2].reply,
			fallback:   true,
		},
		{
			name: "fails mid stream",
			provider: func(onChunk func(string) error) error {
				require.NoError(t, onChunk("Par"))
				return apperr.ErrAIProvider
			},
			wantChunks: []string{"Par"},
			wantText:   "Par",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			completer := NewMockCompleter(ctrl)
			rec := &memoryRecorder{}
			svc := NewService(completer, rec)

			completer.EXPECT().
				Stream(gomock.Any(), msgs, Options{}, gomock.Any()).
				DoAndReturn(func(_ context.Context, _ []Message, _ Options, onChunk func(string) error) error {
					return tt.provider(onChunk)
				})

			var chunks []string
			err := svc.Stream(context.Background(), alice, msgs, Options{}, func(c string) error {
				chunks = append(chunks, c)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantChunks, chunks)

			require.Len(t, rec.exchanges, 1)
			assert.Equal(t, tt.wantText, rec.exchanges[0].Reply)
			assert.Equal(t, tt.fallback, rec.exchanges[0].Fallback)
			assert.True(t, rec.exchanges[0].Streamed)
		})
	}
}

func TestPrompts(t *testing.T) {
	_, err := CareerAdvice("  ", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = InterviewQuestions("Engineer", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ProfileAnalysis(nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = SmartSearch("", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p, err := SmartSearch("alumni in fintech", map[string]string{"city": "Austin"})
	require.NoError(t, err)
	assert.Equal(t, FeatureSmartSearch, p.Feature)
	assert.Equal(t, 300, p.MaxTokens)
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "system", p.Messages[0].Role)
	assert.Contains(t, p.Messages[1].Content, `Context: {"city":"Austin"}`)

	tests := []struct {
		prompt    Prompt
		maxTokens int
	}{
		{AlumniRecommendations(nil, nil), 800},
		{MentorMatches(nil, nil), 600},
		{EventSuggestions(nil, nil), 600},
		{Icebreakers(nil, nil), 400},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.maxTokens, tt.prompt.MaxTokens, string(tt.prompt.Feature))
	}
}
