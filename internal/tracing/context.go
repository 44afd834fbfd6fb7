package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ConversationKey is the context key for the conversation identifier
	ConversationKey ContextKey = "conversation"
	// EventKey is the context key for the event kind being handled
	EventKey ContextKey = "event"
)

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithConversation adds a conversation identifier to the context
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationKey, conversationID)
}

// WithEvent adds the event kind to the context
func WithEvent(ctx context.Context, event string) context.Context {
	return context.WithValue(ctx, EventKey, event)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetConversation retrieves the conversation identifier from the context
func GetConversation(ctx context.Context) string {
	if id, ok := ctx.Value(ConversationKey).(string); ok {
		return id
	}
	return ""
}

// GetEvent retrieves the event kind from the context
func GetEvent(ctx context.Context) string {
	if event, ok := ctx.Value(EventKey).(string); ok {
		return event
	}
	return ""
}

// NewEventContext returns a context for one incoming event, with a fresh
// trace ID unless one is already present.
func NewEventContext(ctx context.Context, conversationID, event string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithConversation(ctx, conversationID)
	return WithEvent(ctx, event)
}

// LoggerFromContext adds the tracing fields found in ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return baseLogger
	}

	lc := baseLogger.With()
	if traceID := GetTraceID(ctx); traceID != "" {
		lc = lc.Str("trace_id", traceID)
	}
	if id := GetConversation(ctx); id != "" {
		lc = lc.Str("conversation", id)
	}
	if event := GetEvent(ctx); event != "" {
		lc = lc.Str("event", event)
	}
	return lc.Logger()
}
