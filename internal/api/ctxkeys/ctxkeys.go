// Package ctxkeys holds the context keys shared by the api, middleware and
// handlers packages. It is a leaf package so none of them import each other.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
// Using a named type avoids collisions with string keys from other packages
// at runtime (context.Value compares both type and value).
type Key string

const (
	// UserID is the context key for the authenticated caller.
	// Injected by AuthMiddleware from JWT claims.
	UserID Key = "user_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
