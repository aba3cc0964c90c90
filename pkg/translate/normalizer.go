// Package translate normalizes user prompts to English before they are sent
// to the image model.
package translate

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// Result is the outcome of normalizing one prompt
type Result struct {
	// Input is the prompt exactly as the user typed it
	Input string
	// Text is what should be sent to the image model
	Text string
	// Source is the detected language, or language.Und
	Source language.Tag
	// Translated is true when Text came from the translator
	Translated bool
	// Warning is set when detection or translation failed; Text is then Input
	Warning error
}

// Changed reports whether the text differs from the input
func (r Result) Changed() bool {
	return r.Text != r.Input
}

// Normalizer detects Hebrew prompts and translates them to English
type Normalizer struct {
	detector   Detector
	translator Translator
	target     string
	logger     zerolog.Logger
}

// NewNormalizer creates a normalizer. A nil detector selects the default
// one; target defaults to "en".
func NewNormalizer(detector Detector, translator Translator, target string) *Normalizer {
	if detector == nil {
		detector = NewDetector()
	}
	if translator == nil {
		translator = NoneTranslator{}
	}
	if target == "" {
		target = "en"
	}
	return &Normalizer{
		detector:   detector,
		translator: translator,
		target:     target,
		logger:     log.With().Str("component", "translate").Logger(),
	}
}

// Normalize returns English text for Hebrew input and the input unchanged
// otherwise. It never fails: problems are reported in Result.Warning.
func (n *Normalizer) Normalize(ctx context.Context, text string) Result {
	res := Result{Input: text, Text: text, Source: language.Und}

	tag, err := n.detector.Detect(text)
	if err != nil {
		res.Warning = &TranslationError{Op: "detect", Err: err}
		n.logger.Warn().Err(err).Msg("Language detection failed")
		return res
	}
	res.Source = tag

	if !IsHebrew(tag) {
		return res
	}

	translated, err := n.translator.Translate(ctx, text, "auto", n.target)
	if err != nil {
		res.Warning = &TranslationError{Op: "translate", Err: err}
		n.logger.Warn().
			Err(err).
			Str("translator", n.translator.Name()).
			Msg("Translation failed, keeping original text")
		return res
	}

	res.Text = translated
	res.Translated = true

	n.logger.Debug().
		Str("translator", n.translator.Name()).
		Str("source", tag.String()).
		Msg("Prompt translated")

	return res
}
