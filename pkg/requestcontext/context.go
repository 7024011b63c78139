// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping the
// package free of net/http lets workers and tests use the same accessors.
package requestcontext

import (
	"context"
	"time"

	id "caresignal/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	caregiverIDKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyCaregiverID = caregiverIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CaregiverID retrieves the acting caregiver id from the context. Identity is
// resolved by an upstream collaborator; the engine only consumes the fact.
// Returns the zero value (nil UUID) if not set.
func CaregiverID(ctx context.Context) id.CaregiverID {
	if caregiverID, ok := ctx.Value(ContextKeyCaregiverID).(id.CaregiverID); ok {
		return caregiverID
	}
	return id.CaregiverID{}
}

// WithCaregiverID injects a caregiver id into the context.
func WithCaregiverID(ctx context.Context, caregiverID id.CaregiverID) context.Context {
	return context.WithValue(ctx, ContextKeyCaregiverID, caregiverID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts like workers and tests that don't inject
// a clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for workers that need a consistent time within a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
