package provider

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/talentmatch/config"
	openai_provider "github.com/mohammad-safakhou/talentmatch/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Message is a single role/content turn sent to the model.
type Message = openai_provider.Message

// Gateway is the structured call boundary: one synchronous model call given a
// system prompt and message history. Implementations return the raw model
// text; callers own parsing and repair.
type Gateway interface {
	Complete(ctx context.Context, system string, messages []Message, wantJSON bool) (string, error)
}

// NewGateway creates a new LLM gateway based on the provided configuration
func NewGateway(cfg config.LLMConfig) (Gateway, error) {
	switch Client(cfg.Provider) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
