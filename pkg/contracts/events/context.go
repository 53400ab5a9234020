package events

import "context"

type traceIDKey struct{}

// WithTraceID returns a context carrying the request's trace identifier. The
// engine stamps it onto every event it emits for that request so sinks can
// correlate the full trace.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFrom extracts the trace identifier, or "" when none was set.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
