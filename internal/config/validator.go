package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

var telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validator performs lint-style checks on configuration values. Unlike
// Config.Validate it collects every problem instead of stopping at the first.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	case "huggingface":
		if !strings.HasPrefix(key, "hf_") {
			return fmt.Errorf("invalid Hugging Face token format (should start with hf_)")
		}
	}

	return nil
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// <bot_id>:<secret>
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateURL requires an absolute http(s) URL
func (v *Validator) ValidateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	return nil
}

// ValidateSchedule parses a cron spec or @every descriptor
func (v *Validator) ValidateSchedule(field, spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", field, spec, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if cfg.Translator.Provider == "llm" && cfg.Translator.LLM.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Translator.LLM.APIKey, cfg.Translator.LLM.Provider); err != nil {
			errors = append(errors, fmt.Errorf("translator.llm: %w", err))
		}
	}
	if cfg.Translator.Provider == "google" && cfg.Translator.Endpoint != "" {
		if err := v.ValidateURL("translator.endpoint", cfg.Translator.Endpoint); err != nil {
			errors = append(errors, err)
		}
	}

	switch cfg.Generation.Backend {
	case "gradio":
		if cfg.Generation.Gradio.BaseURL != "" {
			if err := v.ValidateURL("generation.gradio.base_url", cfg.Generation.Gradio.BaseURL); err != nil {
				errors = append(errors, err)
			}
		}
		if cfg.Generation.Gradio.Token != "" {
			if err := v.ValidateAPIKey(cfg.Generation.Gradio.Token, "huggingface"); err != nil {
				errors = append(errors, fmt.Errorf("generation.gradio: %w", err))
			}
		}
	case "openai":
		if err := v.ValidateAPIKey(cfg.Generation.OpenAI.APIKey, "openai"); err != nil {
			errors = append(errors, fmt.Errorf("generation.openai: %w", err))
		}
	case "gemini":
		if err := v.ValidateAPIKey(cfg.Generation.Gemini.APIKey, "gemini"); err != nil {
			errors = append(errors, fmt.Errorf("generation.gemini: %w", err))
		}
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Telegram.APIEndpoint != "" && !strings.Contains(cfg.Telegram.APIEndpoint, "%s") {
		errors = append(errors, fmt.Errorf("telegram.api_endpoint must contain two %%s placeholders (token, method)"))
	}

	if err := v.ValidateSchedule("scratch.sweep_schedule", cfg.Scratch.SweepSchedule); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateSchedule("session.expiry_schedule", cfg.Session.ExpirySchedule); err != nil {
		errors = append(errors, err)
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute <= 0 {
		errors = append(errors, fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
