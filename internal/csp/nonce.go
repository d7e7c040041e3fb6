package csp

import (
	"context"

	"github.com/google/uuid"
)

type nonceContextKey struct{}

// NewNonce returns a fresh random nonce.
func NewNonce() string {
	return uuid.NewString()
}

// WithNonce stores nonce in the context for templates rendering inline scripts.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceContextKey{}, nonce)
}

// NonceFromContext returns the request nonce, or "" if none was generated.
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceContextKey{}).(string)
	return nonce
}
