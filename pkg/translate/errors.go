package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrUndetectable is returned for text with no letters to classify
	ErrUndetectable = errors.New("no features in text")

	// ErrDisabled is returned by the none translator
	ErrDisabled = errors.New("translation is disabled")
)

// TranslationError wraps any failure while detecting or translating a
// prompt. It is recoverable: the caller continues with the original text.
type TranslationError struct {
	Op  string // detect, translate
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
