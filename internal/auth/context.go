package auth

import (
	"context"

	"wisefido-casebook/internal/domain"
)

type identityKey struct{}

// WithIdentity 把已认证身份挂到请求上下文
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity set by the authenticator, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}
