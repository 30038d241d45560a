// Package openai implements the agent Client directly against the OpenAI
// chat API, for running without a chatbot server in between. Conversation
// memory lives client-side: each Send carries a rolling window of prior
// turns.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/SulavKhadka/voiceloop/pkg/agent"
)

const defaultHistoryTurns = 20

// Compile-time assertion that Client satisfies agent.Client.
var _ agent.Client = (*Client)(nil)

// config holds optional configuration for the client.
type config struct {
	baseURL      string
	timeout      time.Duration
	systemPrompt string
	historyTurns int
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, e.g. for a local
// OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithSystemPrompt sets the system prompt prepended to every conversation.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// WithHistoryTurns bounds how many prior user/assistant exchanges are
// carried per request. Defaults to 20.
func WithHistoryTurns(n int) Option {
	return func(c *config) { c.historyTurns = n }
}

// Client implements agent.Client using the OpenAI API.
type Client struct {
	client       oai.Client
	model        string
	systemPrompt string
	historyTurns int

	mu      sync.Mutex
	history []oai.ChatCompletionMessageParamUnion
}

// New constructs an OpenAI-backed agent client.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	cfg := &config{historyTurns: defaultHistoryTurns}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Client{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		systemPrompt: cfg.systemPrompt,
		historyTurns: cfg.historyTurns,
	}, nil
}

// Send submits one turn with the rolling conversation history and returns
// the assistant's reply.
func (c *Client) Send(ctx context.Context, msg agent.TurnMessage) (string, error) {
	c.mu.Lock()
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(c.history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, oai.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, c.history...)
	messages = append(messages, oai.UserMessage(msg.Message))
	c.mu.Unlock()

	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	reply := resp.Choices[0].Message.Content

	c.mu.Lock()
	c.history = append(c.history, oai.UserMessage(msg.Message), oai.AssistantMessage(reply))
	if limit := c.historyTurns * 2; len(c.history) > limit {
		c.history = append(c.history[:0], c.history[len(c.history)-limit:]...)
	}
	c.mu.Unlock()

	return reply, nil
}

// ResetHistory drops the rolling conversation history.
func (c *Client) ResetHistory() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
