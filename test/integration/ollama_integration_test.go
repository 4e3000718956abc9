package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"ai-interview-be/pkg/llm"
	"ai-interview-be/pkg/llm/factory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a local Ollama with the model pulled, e.g. `ollama pull gemma:2b`.
func ollamaProvider(t *testing.T) llm.StreamingProvider {
	t.Helper()
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		t.Skip("Skipping integration test: OLLAMA_BASE_URL not set")
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "gemma:2b"
	}

	provider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: "ollama",
		Model:    model,
		BaseURL:  baseURL,
		Timeout:  2 * time.Minute,
	})
	require.NoError(t, err)
	return provider
}

func TestOllama_Chat(t *testing.T) {
	provider := ollamaProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	answer, err := provider.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Answer with a single word."},
		{Role: llm.RoleUser, Content: "What is the capital of France?"},
	}, llm.WithTemperature(0))
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(answer))
	t.Logf("Chat answer: %q", answer)
}

func TestOllama_Stream(t *testing.T) {
	provider := ollamaProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	chunks, err := provider.Stream(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: "Ask me one short interview question about Go."},
	}, llm.WithMaxTokens(80))
	require.NoError(t, err)

	var text strings.Builder
	fragments := 0
	done := false
	for c := range chunks {
		require.NoError(t, c.Err)
		if c.Text != "" {
			fragments++
			text.WriteString(c.Text)
		}
		if c.Done {
			done = true
		}
	}

	assert.True(t, done, "stream must end with a done chunk")
	assert.Greater(t, fragments, 1, "expected incremental delivery")
	t.Logf("Streamed %d fragments: %q", fragments, text.String())
}
