// Package observability records an append-only audit trail of generations.
package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/tinies/pkg/generation"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"` // session ID
	Action    string         `json:"action"`          // e.g. "generate", "content_reload"
	Status    string         `json:"status"`          // "success", "failure"
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   io.Closer
}

// NewAuditLogger writes to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// OpenAuditLogger appends to the file at path
func OpenAuditLogger(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	a := NewAuditLogger(file)
	a.file = file
	return a, nil
}

// Record emits an audit event, mirroring it onto the active span if any
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("at", event.Timestamp).
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// StageChanged implements generation.Observer. Only the final stage of a
// request is recorded.
func (a *AuditLogger) StageChanged(ctx context.Context, ev generation.Event) {
	if ev.Stage != generation.StageDone {
		return
	}

	event := AuditEvent{
		Type:      "generation",
		Timestamp: ev.At,
		Actor:     ev.SessionID,
		Action:    "generate",
		Status:    "success",
	}
	if ev.Err != nil {
		event.Status = "failure"
		event.Metadata = map[string]any{"error": ev.Err.Error()}
	}
	a.Record(ctx, event)
}

// RecordContentReload records a hot reload of the page content
func (a *AuditLogger) RecordContentReload(ctx context.Context, dir string, problems []string) {
	event := AuditEvent{
		Type:     "content",
		Action:   "content_reload",
		Status:   "success",
		Metadata: map[string]any{"dir": dir},
	}
	if len(problems) > 0 {
		event.Status = "failure"
		event.Metadata["problems"] = problems
	}
	a.Record(ctx, event)
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
