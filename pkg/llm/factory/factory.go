package factory

import (
	"ai-interview-be/pkg/llm"
	"ai-interview-be/pkg/llm/ollama"
	"ai-interview-be/pkg/llm/openai"
	"fmt"
	"time"
)

type ProviderConfig struct {
	Provider string // "ollama" | "openai"
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

func NewLLMProvider(cfg ProviderConfig) (llm.StreamingProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
