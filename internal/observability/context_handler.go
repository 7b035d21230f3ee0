package observability

import (
	"context"
	"log/slog"

	"github.com/geocoder89/authhub/internal/actorctx"
	"go.opentelemetry.io/otel/trace"
)

// ContextHandler decorates records with what the context knows about the
// request: the otel span, the request id and the authenticated user. Keys the
// caller already set are left alone.
type ContextHandler struct {
	next slog.Handler
}

func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, r)
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	var hasRequestID, hasUserID bool

	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			hasRequestID = true
		case "user_id":
			hasUserID = true
		}
		return true
	})

	if id := actorctx.RequestIDFrom(ctx); id != "" && !hasRequestID {
		r.AddAttrs(slog.String("request_id", id))
	}

	if id, ok := actorctx.UserIDFrom(ctx); ok && !hasUserID {
		r.AddAttrs(slog.String("user_id", id))
	}

	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
