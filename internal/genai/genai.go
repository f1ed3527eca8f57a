// Package genai provides AI-generated conversational replies using the
// OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generation limits for conversational replies.
const (
	// DefaultMaxTokens bounds a single reply; the bot always pushes toward a
	// short answer ending in a booking offer.
	DefaultMaxTokens = 300
	// DefaultTemperature keeps replies conversational without drifting.
	DefaultTemperature = 0.8
)

// System prompts for the conversational fallback. The conversion prompt is
// used once a contact has been chatting for a couple of turns without
// starting a booking.
const (
	SystemPromptConversational = "You are the friendly virtual assistant of Bright Lawyers, " +
		"a law firm offering free initial consultations. Answer briefly and warmly in the " +
		"user's language. When relevant, mention that a free consultation can be booked by " +
		"saying \"appointment\". Never give specific legal advice; suggest a consultation instead."

	SystemPromptConversion = "You are the virtual assistant of Bright Lawyers. The user has " +
		"been chatting for a while without booking. Keep answers short and always close by " +
		"inviting them to book a FREE consultation by replying \"appointment\". Never give " +
		"specific legal advice."
)

// ClientInterface is the minimal surface the orchestrator needs; satisfied
// by Client and by MockClient in tests.
type ClientInterface interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4o
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client initialized", "model", cfg.Model)
	return &Client{client: cli, model: cfg.Model}, nil
}

// Generate produces a reply for the given system and user prompts.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(DefaultMaxTokens),
		Temperature: openai.Float(DefaultTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// MockClient returns a fixed reply; used in tests.
type MockClient struct {
	Reply string
	Err   error
	Calls []string
}

// Generate records the user prompt and returns the configured reply.
func (m *MockClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.Calls = append(m.Calls, userPrompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
