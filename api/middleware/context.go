package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/access"
)

type contextKey string

const (
	ctxActor       contextKey = "actor"
	ctxCartSession contextKey = "cart_session"
	ctxRequestID   contextKey = "request_id"
)

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// ActorFromContext returns the caller resolved by Auth or OptionalAuth, or a
// guest when neither ran.
func ActorFromContext(ctx context.Context) access.Actor {
	if ctx == nil {
		return access.Guest()
	}
	if actor, ok := ctx.Value(ctxActor).(access.Actor); ok {
		return actor
	}
	return access.Guest()
}

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// CartSessionFromContext returns the cart session id set by CartSession.
func CartSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartSession).(string); ok {
		return v
	}
	return ""
}

func WithCartSession(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, sessionID)
}
