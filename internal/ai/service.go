package ai

import (
	"context"
	"strings"
	"time"

	"alumninexus/server/internal/apperr"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/transcripts"
)

// Reply is an assistant answer. Fallback is set when the provider failed and
// a canned reply was substituted.
type Reply struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback"`
}

// Service runs assistant features for a principal. Provider failures never
// reach the caller.
type Service struct {
	completer Completer
	recorder  transcripts.Recorder
	now       func() time.Time
}

func NewService(completer Completer, recorder transcripts.Recorder) *Service {
	if recorder == nil {
		recorder = transcripts.Nop{}
	}
	return &Service{
		completer: completer,
		recorder:  recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateMessages rejects an empty conversation or a turn without a role.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return apperr.Invalid("Messages array is required")
	}
	for _, m := range messages {
		if strings.TrimSpace(m.Role) == "" {
			return apperr.Invalid("every message needs a role")
		}
	}
	return nil
}

// Chat answers a free-form conversation.
func (s *Service) Chat(ctx context.Context, p models.Principal, messages []Message, opts Options) (Reply, error) {
	if err := p.Validate(); err != nil {
		return Reply{}, err
	}
	if err := ValidateMessages(messages); err != nil {
		return Reply{}, err
	}
	return s.complete(ctx, p, FeatureChat, messages, opts), nil
}

// Run answers one of the prompt features.
func (s *Service) Run(ctx context.Context, p models.Principal, prompt Prompt) (Reply, error) {
	if err := p.Validate(); err != nil {
		return Reply{}, err
	}
	return s.complete(ctx, p, prompt.Feature, prompt.Messages, Options{MaxTokens: prompt.MaxTokens}), nil
}

func (s *Service) complete(ctx context.Context, p models.Principal, feature Feature, messages []Message, opts Options) Reply {
	content, err := s.completer.Complete(ctx, messages, opts)
	reply := Reply{Content: content}
	if err != nil {
		log.Errorf("%s completion for %s: %v", feature, p.UserID, err)
		reply = Reply{Content: Fallback(messages), Fallback: true}
	}
	s.record(ctx, p, feature, messages, reply, false)
	return reply
}

// Stream relays completion fragments to onChunk. If the provider fails
// before the first fragment the fallback is delivered as a single chunk;
// a failure after that just ends the stream.
func (s *Service) Stream(ctx context.Context, p models.Principal, messages []Message, opts Options, onChunk func(string) error) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := ValidateMessages(messages); err != nil {
		return err
	}

	var (
		text      strings.Builder
		delivered bool
		sinkErr   error
	)
	err := s.completer.Stream(ctx, messages, opts, func(chunk string) error {
		if err := onChunk(chunk); err != nil {
			sinkErr = err
			return err
		}
		delivered = true
		text.WriteString(chunk)
		return nil
	})
	if sinkErr != nil {
		log.Warningf("stream consumer for %s went away: %v", p.UserID, sinkErr)
		return sinkErr
	}

	reply := Reply{Content: text.String()}
	if err != nil {
		log.Errorf("streaming completion for %s: %v", p.UserID, err)
		if !delivered {
			reply = Reply{Content: Fallback(messages), Fallback: true}
			if err := onChunk(reply.Content); err != nil {
				return err
			}
		}
	}
	s.record(ctx, p, FeatureChat, messages, reply, true)
	return nil
}

func (s *Service) record(ctx context.Context, p models.Principal, feature Feature, messages []Message, reply Reply, streamed bool) {
	turns := make([]transcripts.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, transcripts.Turn{Role: m.Role, Content: m.Content})
	}
	err := s.recorder.Record(ctx, transcripts.Exchange{
		UserID:    p.UserID,
		Feature:   string(feature),
		Messages:  turns,
		Reply:     reply.Content,
		Fallback:  reply.Fallback,
		Streamed:  streamed,
		CreatedAt: s.now(),
	})
	if err != nil {
		log.Warningf("record %s transcript for %s: %v", feature, p.UserID, err)
	}
}
