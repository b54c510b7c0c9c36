package userctx

import (
	"context"

	"github.com/sonht113/recipebook/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Create a new context with the authenticated principal
func New(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Extract the principal from the context
func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}
