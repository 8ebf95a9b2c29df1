package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

var ErrForbidden = errors.New("auth: forbidden")

// Role names used by the gallery routes.
const (
	RoleCreator  = "creator"
	RoleConsumer = "consumer"
)

// Identity is the authenticated caller.
type Identity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether role is among the identity's roles.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Authenticator resolves the caller of a request. Implementations return
// ErrTokenNotFound when the request carries no credentials at all.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(*http.Request) (Identity, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (Identity, error) { return f(r) }

// MissingRoleError is returned by Authorize when the caller lacks a role.
// Its message is the body clients receive.
type MissingRoleError struct {
	Role string
}

func (e *MissingRoleError) Error() string { return "Forbidden: missing role " + e.Role }

func (e *MissingRoleError) Is(target error) bool { return target == ErrForbidden }

// Authorize permits the request when ctx carries an identity holding role.
// Anonymous requests are rejected the same way as identities without it.
func Authorize(ctx context.Context, role string) error {
	id, ok := IdentityFromContext(ctx)
	if !ok || !id.HasRole(role) {
		return &MissingRoleError{Role: role}
	}
	return nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
