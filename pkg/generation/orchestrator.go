// Package generation runs the prompt-to-image lifecycle: translate, invoke
// the remote model, materialize, present, notify and clean up.
package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/tinies/internal/metrics"
	"github.com/harun/tinies/internal/tracing"
	"github.com/harun/tinies/pkg/scratch"
	"github.com/harun/tinies/pkg/session"
	"github.com/harun/tinies/pkg/translate"
)

const (
	tracerName = "tinies/generation"

	// DefaultCaptionPrefix precedes the prompt in relay captions
	DefaultCaptionPrefix = "hand-drawn-cartoon-style-images: "

	// TranslationNoticePrefix labels the translated prompt shown to the user
	TranslationNoticePrefix = "תרגום הפרומפט לאנגלית: "
)

// Normalizer prepares a prompt for the image model
type Normalizer interface {
	Normalize(ctx context.Context, text string) translate.Result
}

// Options wires an Orchestrator
type Options struct {
	Normalizer   Normalizer
	Backend      Backend
	Materializer Materializer
	Scratch      *scratch.Dir
	// Relay is optional; notification is skipped without one
	Relay         Relay
	CaptionPrefix string
	// FailOnNotifyError turns a relay failure into a request error
	FailOnNotifyError bool
	Observer          Observer
	Metrics           *metrics.Metrics
}

// Orchestrator runs generation requests
type Orchestrator struct {
	normalizer    Normalizer
	backend       Backend
	materializer  Materializer
	scratch       *scratch.Dir
	relay         Relay
	captionPrefix string
	failOnNotify  bool
	observer      Observer
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewOrchestrator creates an orchestrator. Normalizer, Backend, Materializer
// and Scratch are required.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Normalizer == nil:
		return nil, fmt.Errorf("normalizer is required")
	case opts.Backend == nil:
		return nil, fmt.Errorf("backend is required")
	case opts.Materializer == nil:
		return nil, fmt.Errorf("materializer is required")
	case opts.Scratch == nil:
		return nil, fmt.Errorf("scratch directory is required")
	}

	prefix := opts.CaptionPrefix
	if prefix == "" {
		prefix = DefaultCaptionPrefix
	}

	return &Orchestrator{
		normalizer:    opts.Normalizer,
		backend:       opts.Backend,
		materializer:  opts.Materializer,
		scratch:       opts.Scratch,
		relay:         opts.Relay,
		captionPrefix: prefix,
		failOnNotify:  opts.FailOnNotifyError,
		observer:      opts.Observer,
		metrics:       opts.Metrics,
		logger:        log.With().Str("component", "generation").Logger(),
	}, nil
}

// Backend returns the configured image backend
func (o *Orchestrator) Backend() Backend {
	return o.backend
}

// Generate runs one request for st. The returned Outcome is non-nil whenever
// the request got past the entry checks, including on error, so notices
// gathered before a failure can still be shown.
func (o *Orchestrator) Generate(ctx context.Context, st *session.State, prompt string) (out *Outcome, err error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if !st.BeginGeneration() {
		return nil, ErrBusy
	}
	defer st.EndGeneration()

	ctx = tracing.NewGenerationContext(ctx, st.ID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "generation.request")
	logger := tracing.LoggerFromContext(ctx, o.logger)

	started := time.Now()
	out = &Outcome{SessionID: st.ID, Prompt: prompt, Normalized: prompt, Stage: StageIdle}

	defer func() {
		out.Duration = time.Since(started)
		status := "success"
		if err != nil {
			status = "error"
		} else {
			out.Stage = StageDone
		}
		o.metrics.RecordGeneration(o.backend.Name(), status)
		o.emit(ctx, st.ID, StageDone, err)
		tracing.EndSpan(span, err)

		logger.Info().
			Str("status", status).
			Str("stage", string(out.Stage)).
			Dur("duration", out.Duration).
			Msg("Generation finished")
	}()

	if prev := st.TakeImagePath(); prev != "" {
		o.remove(ctx, prev)
	}
	st.SetPrompt(prompt)

	// Translate
	var normalized translate.Result
	_ = o.runStage(ctx, out, StageTranslating, func(ctx context.Context) error {
		normalized = o.normalizer.Normalize(ctx, prompt)
		return normalized.Warning
	})
	out.Normalized = normalized.Text
	out.Translated = normalized.Translated

	switch {
	case normalized.Warning != nil:
		o.metrics.RecordTranslation("failed")
		out.Notices = append(out.Notices, Notice{
			Level: NoticeWarning,
			Text:  fmt.Sprintf("Translation error: %v. Proceeding with original text.", normalized.Warning),
		})
	case normalized.Changed():
		o.metrics.RecordTranslation("translated")
		out.Notices = append(out.Notices, Notice{
			Level: NoticeInfo,
			Text:  TranslationNoticePrefix + normalized.Text,
		})
	default:
		o.metrics.RecordTranslation("passthrough")
	}

	// Invoke
	var result any
	if err := o.runStage(ctx, out, StageInvoking, func(ctx context.Context) error {
		r, err := o.backend.Generate(ctx, normalized.Text)
		if err != nil {
			return &InvocationError{Backend: o.backend.Name(), Err: err}
		}
		result = r
		return nil
	}); err != nil {
		return out, err
	}

	// Materialize
	var path string
	if err := o.runStage(ctx, out, StageMaterializing, func(ctx context.Context) error {
		p, err := o.materializer.Materialize(ctx, result)
		if err != nil {
			return err
		}
		path = p
		return nil
	}); err != nil {
		return out, err
	}

	st.SetImagePath(path)
	defer o.cleanup(ctx, out, st, path)

	// Present
	if err := o.runStage(ctx, out, StagePresenting, func(ctx context.Context) error {
		artifact, err := present(path)
		if err != nil {
			return err
		}
		out.Artifact = artifact
		return nil
	}); err != nil {
		return out, err
	}

	// Notify
	if o.relay == nil {
		o.metrics.RecordNotification("skipped")
		return out, nil
	}

	if err := o.runStage(ctx, out, StageNotifying, func(ctx context.Context) error {
		return o.notify(ctx, path, o.captionPrefix+prompt)
	}); err != nil {
		o.metrics.RecordNotification("failed")
		logger.Error().Err(err).Msg("Notification failed")
		if o.failOnNotify {
			return out, err
		}
		out.Notices = append(out.Notices, Notice{Level: NoticeWarning, Text: err.Error()})
		return out, nil
	}
	o.metrics.RecordNotification("sent")

	return out, nil
}

func (o *Orchestrator) runStage(ctx context.Context, out *Outcome, stage Stage, fn func(context.Context) error) error {
	out.Stage = stage
	o.emit(ctx, out.SessionID, stage, nil)

	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "generation."+string(stage))
	err := fn(ctx)
	tracing.EndSpan(span, err)
	o.metrics.ObserveStage(string(stage), started)

	return err
}

func (o *Orchestrator) notify(ctx context.Context, path, caption string) (err error) {
	rs, err := o.relay.Open(ctx)
	if err != nil {
		return &NotificationError{Err: err}
	}
	defer func() {
		if cerr := rs.Close(); cerr != nil {
			o.logger.Warn().Err(cerr).Msg("Failed to close relay session")
		}
	}()

	if err := rs.SendDocument(ctx, path, caption); err != nil {
		return &NotificationError{Err: err}
	}
	return nil
}

// cleanup removes the request's file and clears the session path if it
// still points at it
func (o *Orchestrator) cleanup(ctx context.Context, out *Outcome, st *session.State, path string) {
	ctx = tracing.Detach(ctx)
	o.emit(ctx, out.SessionID, StageCleaningUp, nil)

	started := time.Now()
	_, span := tracing.StartSpan(ctx, tracerName, "generation."+string(StageCleaningUp))
	o.remove(ctx, path)
	st.ClearImagePath(path)
	tracing.EndSpan(span, nil)
	o.metrics.ObserveStage(string(StageCleaningUp), started)
}

func (o *Orchestrator) remove(ctx context.Context, path string) {
	logger := tracing.LoggerFromContext(ctx, o.logger)
	if err := o.scratch.Remove(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove generated file")
		return
	}
	logger.Debug().Str("path", path).Msg("Deleted temporary file")
}

func (o *Orchestrator) emit(ctx context.Context, sessionID string, stage Stage, err error) {
	if o.observer == nil {
		return
	}
	o.observer.StageChanged(ctx, Event{
		SessionID: sessionID,
		Stage:     stage,
		Err:       err,
		At:        time.Now(),
	})
}

func present(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PresentationError{Path: path, Err: err}
	}

	key, err := gonanoid.New()
	if err != nil {
		return nil, &PresentationError{Path: path, Err: fmt.Errorf("failed to create download key: %w", err)}
	}

	return &Artifact{
		Filename:    filepath.Base(path),
		MimeType:    "image/jpeg",
		Data:        data,
		DownloadKey: "download_" + key,
	}, nil
}
