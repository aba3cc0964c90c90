package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI Images backend
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIBackend generates images with the OpenAI Images API
type OpenAIBackend struct {
	client openai.Client
	model  string
	size   string
}

// NewOpenAIBackend creates an OpenAI Images backend
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ImageModelDallE3
	}
	if cfg.Size == "" {
		cfg.Size = string(openai.ImageGenerateParamsSize1024x1024)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		size:   cfg.Size,
	}, nil
}

// Name returns "openai"
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Generate returns the image URL, or the decoded bytes when the API only
// returns base64 data
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (any, error) {
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  b.model,
		Size:   openai.ImageGenerateParamsSize(b.size),
		N:      openai.Int(1),
	}
	if strings.HasPrefix(b.model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatURL
	}

	resp, err := b.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no images returned")
	}

	img := resp.Data[0]
	if img.URL != "" {
		return img.URL, nil
	}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("image has neither url nor data")
}
