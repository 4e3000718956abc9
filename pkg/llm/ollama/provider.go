package ollama

import (
	"ai-interview-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements StreamingProvider
var _ llm.StreamingProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (o *OllamaProvider) buildRequest(ctx context.Context, history []llm.Message, stream bool, opts []llm.Option) (*http.Request, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		ollamaMessages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options:  &ollamaOptions{Temperature: options.Temperature},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}
	if options.JSONMode {
		reqPayload.Format = "json"
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	req, err := o.buildRequest(ctx, history, false, opts)
	if err != nil {
		return "", err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// Stream reads the NDJSON body of a streaming /api/chat call.
func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	req, err := o.buildRequest(ctx, history, true, opts)
	if err != nil {
		return nil, err
	}

	// Streams can legitimately outlive the client timeout; ctx bounds them instead.
	client := *o.Client
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(body))
	}

	chunks := make(chan llm.Chunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var chunk ollamaChatResponse
				if uerr := json.Unmarshal(line, &chunk); uerr != nil {
					llm.Send(ctx, chunks, llm.Chunk{Err: fmt.Errorf("unmarshal stream chunk: %w", uerr)})
					return
				}
				if chunk.Error != "" {
					llm.Send(ctx, chunks, llm.Chunk{Err: fmt.Errorf("ollama stream error: %s", chunk.Error)})
					return
				}
				if !llm.Send(ctx, chunks, llm.Chunk{Text: chunk.Message.Content, Done: chunk.Done}) || chunk.Done {
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					llm.Send(ctx, chunks, llm.Chunk{Err: fmt.Errorf("ollama stream ended before done")})
				} else {
					llm.Send(ctx, chunks, llm.Chunk{Err: fmt.Errorf("stream read error: %w", err)})
				}
				return
			}
		}
	}()
	return chunks, nil
}
