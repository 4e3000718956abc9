package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ai-interview-be/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	client *openai.Client
	model  string
}

var _ llm.StreamingProvider = &Provider{}

func NewProvider(apiKey, baseURL, model string) *Provider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Provider{client: openai.NewClientWithConfig(config), model: model}
}

func (p *Provider) request(history []llm.Message, opts []llm.Option) openai.ChatCompletionRequest {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: p.model}, opts...)

	msgs := make([]openai.ChatCompletionMessage, len(history))
	for i, m := range history {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    msgs,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}
	if options.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, opts))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	req := p.request(history, opts)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	chunks := make(chan llm.Chunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				llm.Send(ctx, chunks, llm.Chunk{Done: true})
				return
			}
			if err != nil {
				llm.Send(ctx, chunks, llm.Chunk{Err: fmt.Errorf("openai stream recv: %w", err)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !llm.Send(ctx, chunks, llm.Chunk{Text: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return chunks, nil
}
