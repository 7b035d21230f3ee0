package actorctx

import "context"

type ctxKey string

const (
	keyUserID    ctxKey = "user_id"
	keyRequestID ctxKey = "request_id"
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)

	return v, ok && v != ""
}

// WithRequestID carries the X-Request-Id beyond the HTTP layer, e.g. into
// queued email jobs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}
