package translate

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// Detector identifies the language of a prompt
type Detector interface {
	Detect(text string) (language.Tag, error)
}

// WhatlangDetector detects languages with trigram statistics
type WhatlangDetector struct{}

// NewDetector returns the default detector
func NewDetector() *WhatlangDetector {
	return &WhatlangDetector{}
}

// Detect returns the most likely language of text. Text in Hebrew script is
// always reported as Hebrew, even when too short for a confident guess.
func (d *WhatlangDetector) Detect(text string) (language.Tag, error) {
	if !hasLetters(text) {
		return language.Und, ErrUndetectable
	}

	info := whatlanggo.Detect(text)
	if info.Lang == whatlanggo.Heb || info.Script == unicode.Hebrew {
		return language.Hebrew, nil
	}

	if info.Lang < 0 {
		return language.Und, nil
	}

	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return language.Und, nil
	}
	return tag, nil
}

// IsHebrew reports whether tag is Hebrew (he, or the legacy iw)
func IsHebrew(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "he"
}

func hasLetters(text string) bool {
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}
