// Package ai talks to an OpenRouter-compatible chat completion endpoint and
// turns provider failures into canned replies.
package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alumninexus/server/internal/apperr"

	logging "github.com/op/go-logging"
)

//go:generate mockgen -source=client.go -destination=mock_completer_test.go -package=ai Completer

var log = logging.MustGetLogger("ai")

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "meta-llama/llama-3.2-3b-instruct:free"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
	DefaultTopP        = 0.9

	appTitle   = "Alumni Nexus Platform"
	doneMarker = "[DONE]"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are sampling parameters. Zero values fall back to the defaults.
type Options struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	TopP        float64 `json:"topP,omitempty"`
}

// Completer produces completions for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	// Stream calls onChunk for every text fragment until the provider
	// signals the end. An error from onChunk aborts the stream.
	Stream(ctx context.Context, messages []Message, opts Options, onChunk func(string) error) error
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Referer string
	Timeout time.Duration
}

// Client is the HTTP Completer.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	referer string
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Referer == "" {
		cfg.Referer = "http://localhost:8080"
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		referer: cfg.Referer,
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) request(messages []Message, opts Options, stream bool) completionRequest {
	req := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		Stream:      stream,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens != 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.TopP != 0 {
		req.TopP = opts.TopP
	}
	return req
}

func (c *Client) do(ctx context.Context, body completionRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", apperr.ErrAIProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAIProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", appTitle)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAIProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", apperr.ErrAIProvider, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := c.do(ctx, c.request(messages, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", apperr.ErrAIProvider, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", apperr.ErrAIProvider)
	}
	return out.Choices[0].Message.Content, nil
}

// Stream reads the server-sent event body. Lines other than "data: " lines
// and payloads that do not parse are skipped.
func (c *Client) Stream(ctx context.Context, messages []Message, opts Options, onChunk func(string) error) error {
	resp, err := c.do(ctx, c.request(messages, opts, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == doneMarker {
			return nil
		}

		var chunk completionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debugf("skipping unparsable stream line: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := onChunk(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read stream: %v", apperr.ErrAIProvider, err)
	}
	return nil
}
