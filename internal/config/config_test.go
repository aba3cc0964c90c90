package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Counter.Driver)
	assert.Equal(t, "visits", cfg.Counter.Name)
	assert.Equal(t, "google", cfg.Translator.Provider)
	assert.Equal(t, "gradio", cfg.Generation.Backend)
	assert.Equal(t, "fujohnwang/alvdansen-littletinies", cfg.Generation.Gradio.Space)
	assert.Equal(t, "/predict", cfg.Generation.Gradio.APIName)
	assert.Equal(t, 90, cfg.Materializer.JPEGQuality)
	assert.Equal(t, "hand-drawn-cartoon-style-images: ", cfg.Telegram.CaptionPrefix)
	assert.False(t, cfg.Telegram.Enabled)
	assert.False(t, cfg.Telegram.FailOnError)
	assert.Len(t, cfg.UI.Examples, 5)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigExamplesAreCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI.Examples[0] = "changed"
	assert.NotEqual(t, "changed", DefaultExamples[0])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown translator",
			mutate:  func(c *Config) { c.Translator.Provider = "deepl" },
			wantErr: "translator.provider",
		},
		{
			name: "llm translator without key",
			mutate: func(c *Config) {
				c.Translator.Provider = "llm"
				c.Translator.LLM.Provider = "anthropic"
			},
			wantErr: "translator.llm.api_key",
		},
		{
			name: "llm translator with unknown provider",
			mutate: func(c *Config) {
				c.Translator.Provider = "llm"
				c.Translator.LLM.Provider = "mistral"
				c.Translator.LLM.APIKey = "k"
			},
			wantErr: "translator.llm.provider",
		},
		{
			name:    "openai backend without key",
			mutate:  func(c *Config) { c.Generation.Backend = "openai" },
			wantErr: "generation.openai.api_key",
		},
		{
			name:    "gemini backend without key",
			mutate:  func(c *Config) { c.Generation.Backend = "gemini" },
			wantErr: "generation.gemini.api_key",
		},
		{
			name: "gradio without address",
			mutate: func(c *Config) {
				c.Generation.Gradio.Space = ""
				c.Generation.Gradio.BaseURL = ""
			},
			wantErr: "space or base_url",
		},
		{
			name:    "unknown counter driver",
			mutate:  func(c *Config) { c.Counter.Driver = "redis" },
			wantErr: "counter.driver",
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *Config) { c.Tracing.SampleRatio = 1.5 },
			wantErr: "tracing.sample_ratio",
		},
		{
			name:    "zero scratch max age",
			mutate:  func(c *Config) { c.Scratch.MaxAge = 0 },
			wantErr: "scratch.max_age",
		},
		{
			name:    "negative session idle timeout",
			mutate:  func(c *Config) { c.Session.IdleTimeout = -5 },
			wantErr: "session.idle_timeout",
		},
		{
			name:    "jpeg quality out of range",
			mutate:  func(c *Config) { c.Materializer.JPEGQuality = 0 },
			wantErr: "jpeg_quality",
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Telegram.Enabled = true },
			wantErr: "bot token",
		},
		{
			name: "telegram enabled without chat",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.BotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
			},
			wantErr: "chat_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigStringMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
	cfg.Generation.Gradio.Token = "hf_secretsecretsecretsecret"

	out := cfg.String()
	assert.NotContains(t, out, "ABCdefGHI")
	assert.NotContains(t, out, "hf_secret")
	assert.True(t, strings.Contains(out, `"bot_token": "***"`))

	// the original is untouched
	assert.Equal(t, "hf_secretsecretsecretsecret", cfg.Generation.Gradio.Token)
}
