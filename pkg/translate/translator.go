package translate

import (
	"context"
)

// Translator turns text into the target language
type Translator interface {
	// Translate translates text from source (or "auto") into target
	Translate(ctx context.Context, text, source, target string) (string, error)

	// Name identifies the translator in logs and metrics
	Name() string
}

// NoneTranslator refuses every translation
type NoneTranslator struct{}

// Translate always fails with ErrDisabled
func (NoneTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	return "", ErrDisabled
}

// Name returns "none"
func (NoneTranslator) Name() string {
	return "none"
}
