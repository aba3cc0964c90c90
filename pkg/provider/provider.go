package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// Message is a single conversation turn
type Message struct {
	Role    string // user, assistant
	Content string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage reports token consumption for one call
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Profile holds what a provider needs to authenticate
type Profile struct {
	Provider   string // openai, anthropic, gemini
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on the profile
func (f *ProviderFactory) NewProvider(ctx context.Context, profile Profile) (LLMProvider, error) {
	if profile.APIKey == "" {
		return nil, fmt.Errorf("%s provider: api key is required", profile.Provider)
	}

	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile), nil
	case "openai":
		return NewOpenAIProvider(profile), nil
	case "gemini":
		return NewGeminiProvider(ctx, profile)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// UserMessage is a shorthand for a single user turn
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}
