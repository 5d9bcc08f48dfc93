package models

import (
	"context"
	"time"
)

type requestContextKey struct{}

// RequestContext carries details of the inbound request that triggered a ledger
// mutation so mirrors can store them as transaction metadata without widening
// the engine's method signatures.
type RequestContext struct {
	Source     string    // "http", "cron", "cli"
	RequestId  string    // request or delivery id from the caller
	ReceivedAt time.Time // when the request reached this service
}

// WithRequestContext attaches request data to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves request data from context, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
