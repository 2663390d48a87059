package grpcserver

import (
	"context"

	"github.com/and161185/bloomplan/internal/service"
	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const claimsKey ctxKey = "bp.claims"

// WithClaims stores the authenticated caller in context.
func WithClaims(ctx context.Context, c service.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromCtx fetches the authenticated caller from context.
func ClaimsFromCtx(ctx context.Context) (service.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(service.Claims)
	return c, ok
}

// UserIDFromCtx fetches the caller's user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ClaimsFromCtx(ctx)
	if !ok || c.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return c.UserID, true
}
