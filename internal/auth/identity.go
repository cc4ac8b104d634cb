package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller. It is a value: handlers get a copy.
type Identity struct {
	ID    uuid.UUID
	Email string
	Name  string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity placed by RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
