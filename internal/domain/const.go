package domain

import "context"

type ctxKey string

const (
	RequesterIdCtxKey ctxKey = "diamond-requesterId"
)

const (
	OwnerIDQueryParam = "owner_id"
	UserAgent         = "diamond-portal/1.0"
)

// RequesterID returns the authenticated subject stored by the auth middleware, if any.
func RequesterID(ctx context.Context) string {
	id, _ := ctx.Value(RequesterIdCtxKey).(string)
	return id
}

// WithRequesterID stores an authenticated subject on ctx.
func WithRequesterID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequesterIdCtxKey, id)
}
