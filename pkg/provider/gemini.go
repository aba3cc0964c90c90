package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements LLMProvider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, profile Profile) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:     profile.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: profile.HTTPClient,
	}
	if profile.BaseURL != "" {
		cc.HTTPOptions.BaseURL = profile.BaseURL
	}
	if profile.Timeout > 0 {
		timeout := profile.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Provider returns the provider name
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Call makes an API call to Google Gemini
func (p *GeminiProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	contents := make([]*genai.Content, 0, len(request.Messages))
	for _, msg := range request.Messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	if len(contents) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		}
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.Temperature > 0 {
		temp := float32(request.Temperature)
		config.Temperature = &temp
	}

	response, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		return nil, err
	}

	if len(response.Candidates) == 0 {
		return nil, fmt.Errorf("no response candidates returned")
	}

	out := &LLMResponse{Content: response.Text()}
	if response.UsageMetadata != nil {
		out.Usage = &TokenUsage{
			InputTokens:  int(response.UsageMetadata.PromptTokenCount),
			OutputTokens: int(response.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
