package generation

import (
	"context"
	"time"
)

// Stage names a step of one generation request
type Stage string

const (
	StageIdle          Stage = "idle"
	StageTranslating   Stage = "translating"
	StageInvoking      Stage = "invoking"
	StageMaterializing Stage = "materializing"
	StagePresenting    Stage = "presenting"
	StageNotifying     Stage = "notifying"
	StageCleaningUp    Stage = "cleaning_up"
	StageDone          Stage = "done"
)

// NoticeLevel is the severity of a user-facing notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a message shown next to the result
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}

// Artifact is a generated image ready for display and download
type Artifact struct {
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	Data        []byte `json:"-"`
	DownloadKey string `json:"download_key"`
}

// Outcome describes one generation request
type Outcome struct {
	SessionID  string        `json:"session_id"`
	Prompt     string        `json:"prompt"`
	Normalized string        `json:"normalized"`
	Translated bool          `json:"translated"`
	Notices    []Notice      `json:"notices,omitempty"`
	Artifact   *Artifact     `json:"artifact,omitempty"`
	Stage      Stage         `json:"stage"`
	Duration   time.Duration `json:"duration"`
}

// Event reports a stage transition to observers
type Event struct {
	SessionID string
	Stage     Stage
	Err       error
	At        time.Time
}

// Observer receives stage transitions
type Observer interface {
	StageChanged(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, ev Event)

// StageChanged calls f
func (f ObserverFunc) StageChanged(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Backend produces an image for a prompt. The result is one of: a local
// path or http(s) URL string, an image.Image, or encoded image bytes.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (any, error)
}

// Materializer writes a backend result to a local JPEG file
type Materializer interface {
	Materialize(ctx context.Context, result any) (string, error)
}

// Relay opens delivery sessions to the notification channel
type Relay interface {
	Open(ctx context.Context) (RelaySession, error)
}

// RelaySession delivers documents. Close must always be called.
type RelaySession interface {
	SendDocument(ctx context.Context, path, caption string) error
	Close() error
}

// Observers fans events out to every observer in order
type Observers []Observer

// StageChanged implements Observer
func (o Observers) StageChanged(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.StageChanged(ctx, ev)
		}
	}
}
