package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // conversation or user id
	Action    string                 `json:"action"`          // e.g. "operation:merge_pdfs", "access_denied"
	Status    string                 `json:"status"`          // "success", "failure", "denied"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger records completed operations and access decisions as JSON
// lines. A nil *AuditLogger discards everything.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	closer io.Closer
}

// NewAuditLogger appends audit events to the file at path
func NewAuditLogger(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		closer: file,
	}, nil
}

// NewAuditWriter writes audit events to w
func NewAuditWriter(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Record emits an audit event to the log and, when ctx carries a span,
// as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if a == nil {
		return
	}
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
		Time("event_time", event.Timestamp).
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

// Close closes the audit log file
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// RecordOperation records the outcome of a document operation. File names
// and parameters such as passwords are never part of the event.
func (a *AuditLogger) RecordOperation(ctx context.Context, conversationID, operation string, inputs int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	a.Record(ctx, AuditEvent{
		Type:   "operation",
		Actor:  conversationID,
		Action: "operation:" + operation,
		Status: status,
		Metadata: map[string]interface{}{
			"inputs":      inputs,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// RecordAccessDenied records an update rejected by the allowlist
func (a *AuditLogger) RecordAccessDenied(ctx context.Context, userID int64, chatID int64) {
	a.Record(ctx, AuditEvent{
		Type:   "security",
		Actor:  fmt.Sprintf("%d", userID),
		Action: "access_denied",
		Status: "denied",
		Metadata: map[string]interface{}{
			"chat_id": chatID,
		},
	})
}
