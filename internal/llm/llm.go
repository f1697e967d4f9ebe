package llm

import (
	"gridchat/internal/config"

	"github.com/sashabaranov/go-openai"
)

// NewClient creates an OpenAI-compatible chat completion client from config.
// Any endpoint speaking the OpenAI chat API works (the default deployment
// points at a hosted Mistral gateway).
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientCfg)
}
