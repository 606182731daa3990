package services

import "context"

// trace is the set of identifiers carried on a context. Each With* call
// stores a copy so parent contexts are never modified.
type trace struct {
	jobID     string
	stage     string
	requestID string
}

type traceKey struct{}

func traceFrom(ctx context.Context) trace {
	if ctx == nil {
		return trace{}
	}
	t, _ := ctx.Value(traceKey{}).(trace)
	return t
}

func withTrace(ctx context.Context, update func(*trace)) context.Context {
	t := traceFrom(ctx)
	update(&t)
	return context.WithValue(ctx, traceKey{}, t)
}

// WithJobID records the remote job identifier. Blank ids leave ctx as is.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withTrace(ctx, func(t *trace) { t.jobID = id })
}

// WithStage records the generation stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withTrace(ctx, func(t *trace) { t.stage = stage })
}

// WithRequestID records a correlation id. The story API client sends it as
// X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withTrace(ctx, func(t *trace) { t.requestID = id })
}

func JobIDFromContext(ctx context.Context) (string, bool) {
	id := traceFrom(ctx).jobID
	return id, id != ""
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := traceFrom(ctx).stage
	return stage, stage != ""
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := traceFrom(ctx).requestID
	return id, id != ""
}
