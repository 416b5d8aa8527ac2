package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// ErrAPIKeyMissing indicates the OpenAI API key was not found in the environment.
var ErrAPIKeyMissing = errors.New("OpenAI API key not found in environment variable OPENAI_API_KEY")

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("LLM returned empty response")

// DefaultModel is used when neither options nor OPENAI_MODEL name one.
const DefaultModel = openai.GPT4oMini

// Request is a single system + user exchange.
type Request struct {
	System      string
	User        string
	JSONMode    bool
	Temperature float32
	MaxTokens   int
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

type Response struct {
	Text  string
	Usage Usage
}

// LLMClient defines the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a system and user message pair. Callers bound it with ctx;
	// there are no retries.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configures NewOpenAIClient. Empty fields fall back to the
// environment and then to defaults.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

// openaiClient implements LLMClient using the OpenAI API.
type openaiClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new client for interacting with the OpenAI API.
// The API key comes from opts or OPENAI_API_KEY, the model from opts,
// OPENAI_MODEL or DefaultModel.
func NewOpenAIClient(opts Options) (LLMClient, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("OpenAI API key missing")
		return nil, ErrAPIKeyMissing
	}

	model := opts.Model
	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	if model == "" {
		model = DefaultModel
		slog.Info("OPENAI_MODEL not set, defaulting", "model", model)
	} else {
		slog.Info("Using OpenAI model", "model", model)
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &openaiClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (c *openaiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	slog.Debug("Sending completion to OpenAI", "model", c.model, "system_length", len(req.System), "user_length", len(req.User))

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return nil, fmt.Errorf("LLM API request failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("OpenAI response missing choices or content")
		return nil, ErrEmptyResponse
	}

	out := &Response{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
			Model:            c.model,
		},
	}
	slog.Debug("Received response from OpenAI", "response_length", len(out.Text), "tokens", out.Usage.TotalTokens)
	return out, nil
}

// --- Mock Client for Testing ---

// MockLLMClient provides a mock implementation for testing purposes.
type MockLLMClient struct {
	CompleteFunc     func(ctx context.Context, req Request) (*Response, error)
	ResponseToReturn string
	UsageToReturn    Usage
	ErrorToReturn    error
	ReceivedPrompt   string  // Store the received prompt for assertion
	ReceivedRequest  Request // Last request seen by Complete
	Calls            int
}

// Complete implements the LLMClient interface for the mock.
func (m *MockLLMClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.ReceivedRequest = req
	m.ReceivedPrompt = req.User
	m.Calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.ErrorToReturn != nil {
		return nil, m.ErrorToReturn
	}
	return &Response{Text: m.ResponseToReturn, Usage: m.UsageToReturn}, nil
}
