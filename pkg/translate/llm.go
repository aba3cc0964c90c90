package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/tinies/pkg/provider"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const llmSystemPrompt = "You translate image-generation prompts. Reply with the %s translation of the user's text and nothing else: no quotes, no notes, no transliteration."

// LLMTranslator translates with a hosted text model
type LLMTranslator struct {
	provider  provider.LLMProvider
	model     string
	maxTokens int
}

// NewLLMTranslator creates a translator backed by p
func NewLLMTranslator(p provider.LLMProvider, model string, maxTokens int) *LLMTranslator {
	return &LLMTranslator{
		provider:  p,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name returns "llm:<provider>"
func (t *LLMTranslator) Name() string {
	return "llm:" + t.provider.Provider()
}

// Translate asks the model for a bare translation into target
func (t *LLMTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := t.provider.Call(ctx, provider.LLMRequest{
		Model:        t.model,
		SystemPrompt: fmt.Sprintf(llmSystemPrompt, languageName(target)),
		Messages:     []provider.Message{provider.UserMessage(text)},
		MaxTokens:    t.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", t.provider.Provider(), err)
	}

	out := strings.Trim(strings.TrimSpace(resp.Content), `"'`)
	if out == "" {
		return "", fmt.Errorf("%s returned an empty translation", t.provider.Provider())
	}
	return out, nil
}

func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Tags().Name(tag)
}
