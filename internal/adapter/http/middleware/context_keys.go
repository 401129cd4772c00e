package middleware

import "context"

// ContextKey is the type of the request context keys set by this package.
type ContextKey string

const (
	UserIDCtxKey    = ContextKey("user_id")
	UserEmailCtxKey = ContextKey("user_email")
)

// UserIDFrom returns the authenticated seller id, or "" for anonymous requests.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserIDCtxKey).(string)
	return id
}
