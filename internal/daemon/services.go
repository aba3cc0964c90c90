package daemon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/harun/tinies/internal/config"
	"github.com/harun/tinies/internal/logger"
	"github.com/harun/tinies/pkg/generation"
	"github.com/harun/tinies/pkg/provider"
	"github.com/harun/tinies/pkg/session"
	"github.com/harun/tinies/pkg/translate"
)

// newNormalizer builds the prompt normalizer for the configured translator
func newNormalizer(ctx context.Context, cfg config.TranslatorConfig, log *logger.Logger) (*translate.Normalizer, error) {
	target := cfg.Target
	if target == "" {
		target = "en"
	}
	if _, err := language.Parse(target); err != nil {
		return nil, fmt.Errorf("invalid translator.target %q: %w", target, err)
	}

	var tr translate.Translator
	switch cfg.Provider {
	case "google":
		tr = translate.NewGoogleTranslator(cfg.Endpoint, seconds(cfg.Timeout))
	case "llm":
		factory := &provider.ProviderFactory{}
		p, err := factory.NewProvider(ctx, provider.Profile{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Timeout:  seconds(cfg.Timeout),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create translation provider: %w", err)
		}
		tr = translate.NewLLMTranslator(p, cfg.LLM.Model, cfg.LLM.MaxTokens)
	case "none", "":
		tr = translate.NoneTranslator{}
	default:
		return nil, fmt.Errorf("unknown translator provider: %s", cfg.Provider)
	}

	log.Info().Str("translator", tr.Name()).Str("target", target).Msg("Prompt translator ready")

	return translate.NewNormalizer(translate.NewDetector(), tr, target), nil
}

// newBackend builds the configured image generation backend
func newBackend(ctx context.Context, cfg config.GenerationConfig) (generation.Backend, error) {
	timeout := seconds(cfg.Timeout)

	switch cfg.Backend {
	case "gradio", "":
		return generation.NewGradioBackend(generation.GradioConfig{
			Space:     cfg.Gradio.Space,
			BaseURL:   cfg.Gradio.BaseURL,
			APIName:   cfg.Gradio.APIName,
			APIPrefix: cfg.Gradio.APIPrefix,
			Token:     cfg.Gradio.Token,
			Timeout:   timeout,
		})
	case "openai":
		return generation.NewOpenAIBackend(generation.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Size:    cfg.OpenAI.Size,
			Timeout: timeout,
		})
	case "gemini":
		return generation.NewGeminiBackend(ctx, generation.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Model:   cfg.Gemini.Model,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown generation backend: %s", cfg.Backend)
	}
}

// sweepScratch removes generated files abandoned by crashed requests
func (d *Daemon) sweepScratch(ctx context.Context) (int, error) {
	n, err := d.scratch.Sweep(ctx, minutes(d.config.Scratch.MaxAge))
	if n > 0 {
		d.metrics.ScratchFilesSwept.Add(float64(n))
	}
	return n, err
}

// expireSessions drops idle sessions
func (d *Daemon) expireSessions(ctx context.Context) (int, error) {
	n := d.sessions.ExpireIdle(time.Now())
	d.metrics.SessionsActive.Set(float64(d.sessions.Len()))
	return n, nil
}

// expireSession releases the image an expired session still holds
func (d *Daemon) expireSession(st *session.State) {
	if path := st.TakeImagePath(); path != "" {
		d.removeScratch(path)
	}
}

func (d *Daemon) removeScratch(path string) {
	if err := d.scratch.Remove(path); err != nil {
		d.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove scratch file")
	}
}

// checkRelay verifies the bot token once at startup. Failures only warn:
// generation keeps working without notifications.
func (d *Daemon) checkRelay() {
	ctx, cancel := context.WithTimeout(d.ctx, seconds(d.config.Telegram.Timeout))
	defer cancel()

	username, err := d.relay.Ping(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Telegram relay check failed")
		return
	}
	d.logger.Info().Str("bot", username).Int64("chat_id", d.config.Telegram.ChatID).Msg("Telegram relay ready")
}
