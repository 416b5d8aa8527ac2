package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	t.Run("Success Case", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key-123")

		client, err := NewOpenAIClient(Options{})
		require.NoError(t, err)
		require.NotNil(t, client)

		_, ok := client.(*openaiClient)
		assert.True(t, ok, "Client should be of type *openaiClient")
	})

	t.Run("Failure Case - API Key Missing", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		client, err := NewOpenAIClient(Options{})
		require.Error(t, err)
		assert.Nil(t, client)
		assert.ErrorIs(t, err, ErrAPIKeyMissing, "Error should be ErrAPIKeyMissing")
	})

	t.Run("Key From Options", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		client, err := NewOpenAIClient(Options{APIKey: "opt-key", BaseURL: "http://localhost:9999/v1"})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("Model Defaulting", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key-123")
		t.Setenv("OPENAI_MODEL", "")

		client, err := NewOpenAIClient(Options{})
		require.NoError(t, err)
		oaiClient, ok := client.(*openaiClient)
		require.True(t, ok)
		assert.Equal(t, DefaultModel, oaiClient.model)
	})

	t.Run("Model From Environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key-123")
		t.Setenv("OPENAI_MODEL", "test-model-from-env")

		client, err := NewOpenAIClient(Options{})
		require.NoError(t, err)
		oaiClient, ok := client.(*openaiClient)
		require.True(t, ok)
		assert.Equal(t, "test-model-from-env", oaiClient.model)
	})

	t.Run("Model From Options Wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key-123")
		t.Setenv("OPENAI_MODEL", "test-model-from-env")

		client, err := NewOpenAIClient(Options{Model: "configured"})
		require.NoError(t, err)
		assert.Equal(t, "configured", client.(*openaiClient).model)
	})
}

var _ LLMClient = (*MockLLMClient)(nil)

func TestMockLLMClient(t *testing.T) {
	t.Run("Returns Response", func(t *testing.T) {
		mock := &MockLLMClient{ResponseToReturn: "Mock response"}
		prompt := "Test prompt"
		resp, err := mock.Complete(context.Background(), Request{User: prompt})

		require.NoError(t, err)
		assert.Equal(t, "Mock response", resp.Text)
		assert.Equal(t, prompt, mock.ReceivedPrompt)
	})

	t.Run("Returns Error", func(t *testing.T) {
		mockErr := errors.New("mock LLM error")
		mock := &MockLLMClient{ErrorToReturn: mockErr}
		resp, err := mock.Complete(context.Background(), Request{User: "Another prompt"})

		require.Error(t, err)
		assert.ErrorIs(t, err, mockErr)
		assert.Nil(t, resp)
		assert.Equal(t, "Another prompt", mock.ReceivedPrompt)
	})

	t.Run("Complete Records Request", func(t *testing.T) {
		mock := &MockLLMClient{
			ResponseToReturn: `{"chart_type":"bar"}`,
			UsageToReturn:    Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		}
		req := Request{System: "sys", User: "usr", JSONMode: true}
		resp, err := mock.Complete(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, `{"chart_type":"bar"}`, resp.Text)
		assert.Equal(t, 7, resp.Usage.TotalTokens)
		assert.Equal(t, req, mock.ReceivedRequest)
		assert.Equal(t, "usr", mock.ReceivedPrompt)
		assert.Equal(t, 1, mock.Calls)
	})

	t.Run("Uses Custom Func", func(t *testing.T) {
		expectedErr := errors.New("error from func")
		called := false
		mock := &MockLLMClient{
			CompleteFunc: func(ctx context.Context, r Request) (*Response, error) {
				called = true
				assert.Equal(t, "prompt for func", r.User)
				return nil, expectedErr
			},
		}
		resp, err := mock.Complete(context.Background(), Request{User: "prompt for func"})
		assert.True(t, called, "CompleteFunc should have been called")
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, expectedErr)
	})
}
