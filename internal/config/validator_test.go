package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		valid    bool
	}{
		{"anthropic ok", "sk-ant-test123", "anthropic", true},
		{"anthropic bad prefix", "invalid-key", "anthropic", false},
		{"openai ok", "sk-test123", "openai", true},
		{"openai bad prefix", "invalid-key", "openai", false},
		{"gemini ok", "AIzaSyTest", "gemini", true},
		{"gemini bad prefix", "sk-test", "gemini", false},
		{"huggingface ok", "hf_abc", "huggingface", true},
		{"huggingface bad prefix", "abc", "huggingface", false},
		{"empty", "", "openai", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateTelegramToken(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTelegramToken("123456789:ABCdefGHIjklMNOpqrsTUVwxyz"))
	assert.Error(t, v.ValidateTelegramToken("invalid-token"))
	assert.Error(t, v.ValidateTelegramToken(""))
}

func TestValidateURL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateURL("x", "https://example.hf.space"))
	assert.Error(t, v.ValidateURL("x", "ftp://example.com"))
	assert.Error(t, v.ValidateURL("x", "https://"))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("s", ""))
	assert.NoError(t, v.ValidateSchedule("s", "@every 10m"))
	assert.NoError(t, v.ValidateSchedule("s", "*/5 * * * *"))
	assert.Error(t, v.ValidateSchedule("s", "every ten minutes"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are clean", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "verbose"
		cfg.Scratch.SweepSchedule = "sometimes"
		cfg.Generation.Gradio.Token = "not-a-token"
		cfg.RateLimit.RequestsPerMinute = 0

		errs := v.ValidateConfig(cfg)
		require.Len(t, errs, 4)
	})
}
