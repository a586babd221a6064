package models

import "context"

// AnonymousPlayer is the identity used when the host cannot resolve a username.
const AnonymousPlayer = "anon"

type callerContextKey struct{}

// Caller is the identity and post scope of the request being served.
type Caller struct {
	PlayerId string
	PostId   string
}

// WithCaller attaches the caller to a context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if caller.PlayerId == "" {
		caller.PlayerId = AnonymousPlayer
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller attached to ctx. The player falls back
// to AnonymousPlayer and the post id is empty when nothing was attached.
func CallerFromContext(ctx context.Context) Caller {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok {
		return Caller{PlayerId: AnonymousPlayer}
	}
	return caller
}

// GetCallerIdentity returns the player id of the caller.
func GetCallerIdentity(ctx context.Context) string {
	return CallerFromContext(ctx).PlayerId
}

// GetCurrentPostId returns the post the caller is interacting with.
func GetCurrentPostId(ctx context.Context) string {
	return CallerFromContext(ctx).PostId
}
