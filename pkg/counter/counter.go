package counter

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Gate is the per-session one-time flag guarding CountOnce
type Gate interface {
	// MarkCounted returns true only for the call that flips the flag
	MarkCounted() bool
	// ResetCounted clears the flag so a later call can count again
	ResetCounted()
}

// Read returns the current value
func Read(ctx context.Context, store Store) (int64, error) {
	return store.Value(ctx)
}

// ReadFormatted returns the current value with locale digit grouping
func ReadFormatted(ctx context.Context, store Store, tag language.Tag) (string, error) {
	n, err := store.Value(ctx)
	if err != nil {
		return "", err
	}
	return Format(n, tag), nil
}

// Format renders n with the grouping separators of tag ("1,234" for English)
func Format(n int64, tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf("%d", n)
}

// CountOnce increments the store the first time it is called for a gate.
// It reports whether an increment happened along with the value afterwards.
// A failed increment leaves the gate open for the next call.
func CountOnce(ctx context.Context, store Store, gate Gate) (int64, bool, error) {
	if !gate.MarkCounted() {
		n, err := store.Value(ctx)
		return n, false, err
	}
	n, err := store.Increment(ctx)
	if err != nil {
		gate.ResetCounted()
		return 0, false, err
	}
	return n, true, nil
}
