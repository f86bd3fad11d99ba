package gate

import (
	"context"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
)

type identityKey struct{}

// WithIdentity stores the granted identity in ctx.
func WithIdentity(ctx context.Context, user *authsdk.UserResponse) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// IdentityFrom returns the identity stored by a protected route.
func IdentityFrom(ctx context.Context) (*authsdk.UserResponse, bool) {
	user, ok := ctx.Value(identityKey{}).(*authsdk.UserResponse)
	return user, ok && user != nil
}
